// Package edl holds the edit decision list model and the structural edit
// operations that transform it. Operations validate their inputs before
// touching the project, so a failed edit leaves the project unchanged.
package edl

import (
	"fmt"
	"sort"
)

const (
	// MusicTrack is the reserved audio track that receives migrated background music.
	MusicTrack = 99

	DefaultAudioTrack     = 2
	DefaultAudioDuration  = 60.0
	DefaultMusicDuration  = 60.0
	DefaultOverlayLength  = 2.0
	DefaultOverlayStyle   = StylePop
	DefaultClipLength     = 5.0
	VideoTrackKey         = "a1"
	MusicTrackKey         = "music"
	DefaultTemperature    = 5600
	DefaultSaturation     = 100
	DefaultFilterStrength = 100
)

// Overlay styles.
const (
	StylePop        = "pop"
	StyleSlideUp    = "slide_up"
	StyleFade       = "fade"
	StyleTypewriter = "typewriter"
)

// Overlay origins.
const (
	OriginManual = "manual"
	OriginAI     = "ai"
)

type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

type ColorGrading struct {
	Temperature    float64 `json:"temperature"`
	Exposure       float64 `json:"exposure"`
	Contrast       float64 `json:"contrast"`
	Saturation     float64 `json:"saturation"`
	FilterStrength float64 `json:"filterStrength"`
}

// DefaultColorGrading returns the neutral grade used when analysis omits one.
func DefaultColorGrading() ColorGrading {
	return ColorGrading{
		Temperature:    DefaultTemperature,
		Saturation:     DefaultSaturation,
		FilterStrength: DefaultFilterStrength,
	}
}

type GlobalSettings struct {
	FilterSuggestion string        `json:"filterSuggestion"`
	ColorGrading     *ColorGrading `json:"colorGrading,omitempty"`
}

// Clip is a window [Start, End] of source media placed in the EDL sequence.
// Its timeline length is always End-Start.
type Clip struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Keep         bool          `json:"keep"`
	Reason       string        `json:"reason,omitempty"`
	Start        float64       `json:"start"`
	End          float64       `json:"end"`
	Text         string        `json:"text,omitempty"`
	EmotionScore float64       `json:"emotionScore,omitempty"`
	ColorGrading *ColorGrading `json:"colorGrading,omitempty"`
	Words        []Word        `json:"words,omitempty"`
}

func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// AudioClip is placed by absolute timeline time, independent of the EDL order.
// Offset is the source position that plays at Start.
type AudioClip struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Offset   float64 `json:"offset,omitempty"`
	Track    int     `json:"track"`
}

func (a AudioClip) End() float64 {
	return a.Start + a.Duration
}

// ActiveAt reports whether the clip covers timeline time t.
func (a AudioClip) ActiveAt(t float64) bool {
	return a.Start <= t && t < a.Start+a.Duration
}

type BgMusic struct {
	Source   string  `json:"source"`
	Volume   float64 `json:"volume"`
	Loop     bool    `json:"loop"`
	Start    float64 `json:"start,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Length returns the music duration, falling back to the default when unknown.
func (m BgMusic) Length() float64 {
	if m.Duration > 0 {
		return m.Duration
	}
	return DefaultMusicDuration
}

type TextOverlay struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Start      float64  `json:"start"`
	Duration   float64  `json:"duration"`
	Style      string   `json:"style"`
	Origin     string   `json:"origin"`
	PositionX  *float64 `json:"positionX,omitempty"`
	PositionY  *float64 `json:"positionY,omitempty"`
	FontSize   float64  `json:"fontSize,omitempty"`
	TextColor  string   `json:"textColor,omitempty"`
	FontFamily string   `json:"fontFamily,omitempty"`
}

func (o TextOverlay) ActiveAt(t float64) bool {
	return o.Start <= t && t < o.Start+o.Duration
}

type ViralShort struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ClipIDs     []string `json:"clipIds"`
}

// Project is the root aggregate. The order of EDL defines timeline position.
type Project struct {
	Name           string             `json:"name"`
	GlobalSettings GlobalSettings     `json:"globalSettings"`
	EDL            []Clip             `json:"edl"`
	Overlays       []TextOverlay      `json:"overlays"`
	AudioClips     []AudioClip        `json:"audioClips"`
	AudioTracks    []int              `json:"audioTracks"`
	TrackVolumes   map[string]float64 `json:"trackVolumes"`
	BgMusic        *BgMusic           `json:"bgMusic,omitempty"`
	ViralShorts    []ViralShort       `json:"viralShorts"`
}

// NewProject returns an empty project with the default track layout.
func NewProject(name string) *Project {
	p := &Project{Name: name}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills in collections and track settings a decoder left nil.
// An empty track list is kept; it means every secondary track was removed.
func (p *Project) ApplyDefaults() {
	if p.EDL == nil {
		p.EDL = []Clip{}
	}
	if p.Overlays == nil {
		p.Overlays = []TextOverlay{}
	}
	if p.AudioClips == nil {
		p.AudioClips = []AudioClip{}
	}
	if p.ViralShorts == nil {
		p.ViralShorts = []ViralShort{}
	}
	if p.AudioTracks == nil {
		p.AudioTracks = []int{DefaultAudioTrack}
	}
	if p.TrackVolumes == nil {
		p.TrackVolumes = map[string]float64{VideoTrackKey: 1, "a2": 1, MusicTrackKey: 1}
	}
}

// TotalDuration is the concatenated length of every clip in the EDL.
func (p *Project) TotalDuration() float64 {
	total := 0.0
	for _, c := range p.EDL {
		total += c.Duration()
	}
	return total
}

// KeptDuration is the length of the timeline when rejected clips are skipped.
func (p *Project) KeptDuration() float64 {
	total := 0.0
	for _, c := range p.EDL {
		if c.Keep {
			total += c.Duration()
		}
	}
	return total
}

func (p *Project) ClipIndex(id string) int {
	for i := range p.EDL {
		if p.EDL[i].ID == id {
			return i
		}
	}
	return -1
}

// Clip returns the clip with the given id or ErrClipNotFound.
func (p *Project) Clip(id string) (*Clip, error) {
	idx := p.ClipIndex(id)
	if idx < 0 {
		return nil, clipNotFound(id)
	}
	return &p.EDL[idx], nil
}

// TrackVolume returns the configured volume for a track key, defaulting to 1.
func (p *Project) TrackVolume(key string) float64 {
	if v, ok := p.TrackVolumes[key]; ok {
		return v
	}
	if key == MusicTrackKey && p.BgMusic != nil && p.BgMusic.Volume > 0 {
		return p.BgMusic.Volume
	}
	return 1
}

// AudioTrackKey is the volume key for an audio track number.
func AudioTrackKey(track int) string {
	return fmt.Sprintf("a%d", track)
}

// Clone returns a deep copy that shares no slices or maps with p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p

	if p.GlobalSettings.ColorGrading != nil {
		g := *p.GlobalSettings.ColorGrading
		cp.GlobalSettings.ColorGrading = &g
	}

	cp.EDL = make([]Clip, len(p.EDL))
	for i, c := range p.EDL {
		cp.EDL[i] = c.clone()
	}

	cp.Overlays = make([]TextOverlay, len(p.Overlays))
	for i, o := range p.Overlays {
		cp.Overlays[i] = o.clone()
	}

	cp.AudioClips = append([]AudioClip{}, p.AudioClips...)
	cp.AudioTracks = append([]int{}, p.AudioTracks...)

	if p.TrackVolumes != nil {
		cp.TrackVolumes = make(map[string]float64, len(p.TrackVolumes))
		for k, v := range p.TrackVolumes {
			cp.TrackVolumes[k] = v
		}
	}

	if p.BgMusic != nil {
		m := *p.BgMusic
		cp.BgMusic = &m
	}

	cp.ViralShorts = make([]ViralShort, len(p.ViralShorts))
	for i, s := range p.ViralShorts {
		s.ClipIDs = append([]string{}, s.ClipIDs...)
		cp.ViralShorts[i] = s
	}

	return &cp
}

func (c Clip) clone() Clip {
	if c.ColorGrading != nil {
		g := *c.ColorGrading
		c.ColorGrading = &g
	}
	if c.Words != nil {
		c.Words = append([]Word{}, c.Words...)
	}
	return c
}

func (o TextOverlay) clone() TextOverlay {
	if o.PositionX != nil {
		x := *o.PositionX
		o.PositionX = &x
	}
	if o.PositionY != nil {
		y := *o.PositionY
		o.PositionY = &y
	}
	return o
}

// Validate checks the structural invariants of the project.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.EDL))
	for _, c := range p.EDL {
		if c.ID == "" {
			return fmt.Errorf("%w: clip with empty id", ErrInvalidProject)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate clip id %q", ErrInvalidProject, c.ID)
		}
		seen[c.ID] = true
		if c.End < c.Start {
			return fmt.Errorf("%w: clip %s ends before it starts", ErrInvalidProject, c.ID)
		}
		if c.Duration() <= 0 {
			return fmt.Errorf("%w: clip %s has no duration", ErrInvalidProject, c.ID)
		}
	}
	for _, a := range p.AudioClips {
		if a.Duration <= 0 {
			return fmt.Errorf("%w: audio clip %s has no duration", ErrInvalidProject, a.ID)
		}
	}
	return nil
}

// OverlaysAt returns the overlays visible at timeline time t.
func (p *Project) OverlaysAt(t float64) []TextOverlay {
	var active []TextOverlay
	for _, o := range p.Overlays {
		if o.ActiveAt(t) {
			active = append(active, o)
		}
	}
	return active
}

// AudioClipsAt returns the audio clips sounding at timeline time t, ordered by track.
func (p *Project) AudioClipsAt(t float64) []AudioClip {
	var active []AudioClip
	for _, a := range p.AudioClips {
		if a.ActiveAt(t) {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Track < active[j].Track })
	return active
}
