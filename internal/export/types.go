package export

import "github.com/rampellisaieshwar/GravityEdits/internal/edl"

const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
)

// RenderPayload is the project document sent to the render service.
type RenderPayload struct {
	Name           string             `json:"name"`
	RenderMode     string             `json:"renderMode"`
	GlobalSettings edl.GlobalSettings `json:"globalSettings"`
	Filter         string             `json:"filter,omitempty"`
	Clips          []RenderClip       `json:"clips"`
	BgMusic        *edl.BgMusic       `json:"bgMusic,omitempty"`
	AudioClips     []edl.AudioClip    `json:"audioClips"`
	AudioTracks    []int              `json:"audioTracks,omitempty"`
	TrackVolumes   map[string]float64 `json:"trackVolumes,omitempty"`
	Overlays       []edl.TextOverlay  `json:"overlays"`
}

type RenderClip struct {
	ID           string            `json:"id"`
	Source       string            `json:"source"`
	Keep         bool              `json:"keep"`
	Start        float64           `json:"start"`
	End          float64           `json:"end"`
	Text         string            `json:"text,omitempty"`
	ColorGrading *edl.ColorGrading `json:"colorGrading,omitempty"`
}

// Event is one CMX3600 edit: a kept clip in timeline order.
type Event struct {
	ClipName  string
	MediaPath string
	Start     float64
	End       float64
}

// EDLResult describes a written EDL file.
type EDLResult struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path,omitempty"`
	EventCount int    `json:"event_count"`
	Content    string `json:"content,omitempty"`
}
