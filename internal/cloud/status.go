package cloud

import (
	"math"
	"strings"

	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

// statusDoc is the status document shared by the analysis and render services.
type statusDoc struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	URL      string  `json:"url"`
}

func (d statusDoc) remote() jobs.Remote {
	return jobs.Remote{
		State:    remoteState(d.Status),
		Progress: int(math.Round(math.Max(0, math.Min(100, d.Progress)))),
		Message:  d.Message,
		URL:      d.URL,
	}
}

func remoteState(s string) jobs.RemoteState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "done":
		return jobs.RemoteCompleted
	case "failed", "error":
		return jobs.RemoteFailed
	case "cancelled", "canceled":
		return jobs.RemoteCancelled
	case "processing", "running", "rendering":
		return jobs.RemoteProcessing
	default:
		return jobs.RemotePending
	}
}

// submitResponse is returned by both job submission endpoints.
type submitResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}
