package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

// Render modes accepted by the render service.
const (
	ModeLocal   = "local"
	ModeVideoDB = "videodb"
)

// RenderRequest submits a render payload. Project is marshalled as-is.
type RenderRequest struct {
	Mode       string `json:"mode,omitempty"`
	VideoDBKey string `json:"videodb_key,omitempty"`
	Project    any    `json:"project"`
}

// RenderClient talks to the render service. It satisfies jobs.Client.
type RenderClient struct {
	c *client
}

func NewRenderClient(opts Options) *RenderClient {
	return &RenderClient{c: newClient("render", opts)}
}

func (r *RenderClient) Submit(ctx context.Context, req RenderRequest) (string, error) {
	if req.Mode == "" {
		req.Mode = ModeLocal
	}
	var resp submitResponse
	if err := r.c.doJSON(ctx, http.MethodPost, "/export-video/", req, &resp); err != nil {
		return "", fmt.Errorf("submit render: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit render: %w", ErrNoJobID)
	}
	r.c.logger.Info("render job queued", "job_id", resp.JobID, "mode", req.Mode)
	return resp.JobID, nil
}

func (r *RenderClient) Status(ctx context.Context, id string) (jobs.Remote, error) {
	var doc statusDoc
	err := r.c.doJSON(ctx, http.MethodGet, "/export-status/"+url.PathEscape(id), nil, &doc)
	if IsNotFound(err) {
		return jobs.Remote{State: jobs.RemoteNotFound}, nil
	}
	if err != nil {
		return jobs.Remote{}, err
	}
	return doc.remote(), nil
}

// Cancel asks the render service to stop a job. A job the service has
// already forgotten counts as cancelled.
func (r *RenderClient) Cancel(ctx context.Context, id string) error {
	_, err := r.c.do(ctx, http.MethodPost, "/cancel-export/"+url.PathEscape(id), nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("cancel render %s: %w", id, err)
	}
	return nil
}
