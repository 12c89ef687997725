package api

import (
	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/shorts"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	Project       string          `json:"project,omitempty"`
	Version       uint64          `json:"version"`
	ClipCount     int             `json:"clip_count"`
	Duration      float64         `json:"duration"`
	CanUndo       bool            `json:"can_undo"`
	ActiveShort   int             `json:"active_short"`
	Playback      *playback.Frame `json:"playback,omitempty"`
	AnalysisJob   *jobs.Job       `json:"analysis_job,omitempty"`
	RenderJob     *jobs.Job       `json:"render_job,omitempty"`
	PreviewClient int             `json:"preview_clients"`
}

// ProjectResponse wraps the current snapshot with its session version so
// clients can detect stale reads.
type ProjectResponse struct {
	Version     uint64       `json:"version"`
	ActiveShort int          `json:"active_short"`
	CanUndo     bool         `json:"can_undo"`
	Project     *edl.Project `json:"project"`
}

type LoadProjectRequest struct {
	Name    string       `json:"name,omitempty"`
	Project *edl.Project `json:"project,omitempty"`
}

type ImportProjectRequest struct {
	Name string `json:"name"`
}

type ImportProjectResponse struct {
	ProjectResponse
	MetadataMerged int `json:"metadata_merged"`
}

type SaveProjectResponse struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

type ProjectsResponse struct {
	Projects []ProjectSummaryResponse `json:"projects"`
}

type ProjectSummaryResponse struct {
	Name      string  `json:"name"`
	ClipCount int     `json:"clip_count"`
	Duration  float64 `json:"duration"`
	UpdatedAt string  `json:"updated_at"`
}

// EditResponse reports the ids minted by an edit together with the new
// snapshot version.
type EditResponse struct {
	Version uint64    `json:"version"`
	IDs     []string  `json:"ids,omitempty"`
	Word    *edl.Word `json:"word,omitempty"`
}

type SplitRequest struct {
	Offset     *float64 `json:"offset,omitempty"`
	SourceTime *float64 `json:"source_time,omitempty"`
}

type RemoveSegmentRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type RemoveWordRequest struct {
	Word string `json:"word"`
}

type ClipPatchRequest struct {
	Keep         *bool             `json:"keep,omitempty"`
	Text         *string           `json:"text,omitempty"`
	Start        *float64          `json:"start,omitempty"`
	End          *float64          `json:"end,omitempty"`
	ColorGrading *edl.ColorGrading `json:"color_grading,omitempty"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type MoveClipRequest struct {
	To int `json:"to"`
}

type GradingRequest struct {
	ColorGrading edl.ColorGrading `json:"color_grading"`
}

type TrackResponse struct {
	Version uint64 `json:"version"`
	Track   int    `json:"track"`
}

type TrackVolumeRequest struct {
	Volume float64 `json:"volume"`
}

type AddAudioClipRequest struct {
	Source   string  `json:"source"`
	Start    float64 `json:"start"`
	Track    int     `json:"track"`
	Duration float64 `json:"duration,omitempty"`
}

type AudioSplitRequest struct {
	Offset float64 `json:"offset"`
}

type BgMusicPatchRequest struct {
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

type BgMusicSplitRequest struct {
	At float64 `json:"at"`
}

type ShortResponse struct {
	Version uint64        `json:"version"`
	Result  shorts.Result `json:"result"`
	Partial bool          `json:"partial"`
}

type SeekRequest struct {
	Time   *float64 `json:"time,omitempty"`
	ClipID string   `json:"clip_id,omitempty"`
}

type KeepOnlyRequest struct {
	Enabled bool `json:"enabled"`
}

type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

type CommandRequest struct {
	Text string `json:"text"`
}

type CommandOutcome struct {
	Command string `json:"command"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
}

type CommandResponse struct {
	Recognized bool             `json:"recognized"`
	Committed  bool             `json:"committed"`
	Undone     bool             `json:"undone"`
	Version    uint64           `json:"version"`
	Messages   []string         `json:"messages"`
	Outcomes   []CommandOutcome `json:"outcomes,omitempty"`
}

type ChatRequest struct {
	Query string `json:"query"`
}

type ChatResponse struct {
	Reply   string           `json:"reply"`
	Command *CommandResponse `json:"command,omitempty"`
}

type AnalysisJobRequest struct {
	Name        string   `json:"name"`
	FileNames   []string `json:"file_names"`
	Description string   `json:"description,omitempty"`
}

type RenderJobRequest struct {
	Mode       string `json:"mode,omitempty"`
	ShortIndex *int   `json:"short_index,omitempty"`
}

type JobsResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

type ExportEDLRequest struct {
	OutputDir string  `json:"output_dir,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func CommandToResponse(rep command.Report, version uint64) CommandResponse {
	resp := CommandResponse{
		Recognized: !rep.Unrecognized,
		Committed:  rep.Committed,
		Undone:     rep.Undone,
		Version:    version,
		Messages:   rep.Messages(),
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	for _, o := range rep.Outcomes {
		resp.Outcomes = append(resp.Outcomes, CommandOutcome{
			Command: o.Command.Name(),
			Message: o.Message,
			OK:      o.OK(),
			Skipped: o.Skipped,
		})
	}
	return resp
}
