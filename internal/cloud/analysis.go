package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

// ErrNoJobID is returned when a service accepts a job without naming it.
var ErrNoJobID = errors.New("service returned no job id")

// AnalysisRequest asks the analysis service to build an EDL from raw footage.
type AnalysisRequest struct {
	ProjectName string   `json:"project_name"`
	FileNames   []string `json:"file_names"`
	Description string   `json:"description,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
}

// AnalysisClient talks to the analysis service. It satisfies jobs.Client.
type AnalysisClient struct {
	c *client
}

func NewAnalysisClient(opts Options) *AnalysisClient {
	return &AnalysisClient{c: newClient("analysis", opts)}
}

// Submit queues an analysis job and returns its id.
func (a *AnalysisClient) Submit(ctx context.Context, req AnalysisRequest) (string, error) {
	if req.ProjectName == "" {
		return "", fmt.Errorf("submit analysis: %w: project name is required", edl.ErrInvalidArgument)
	}
	var resp submitResponse
	if err := a.c.doJSON(ctx, http.MethodPost, "/analyze/", req, &resp); err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit analysis: %w", ErrNoJobID)
	}
	a.c.logger.Info("analysis job queued", "job_id", resp.JobID, "project", req.ProjectName)
	return resp.JobID, nil
}

// Status reports the analysis job state. An id the service no longer knows
// maps to jobs.RemoteNotFound rather than an error.
func (a *AnalysisClient) Status(ctx context.Context, id string) (jobs.Remote, error) {
	var doc statusDoc
	err := a.c.doJSON(ctx, http.MethodGet, "/analysis-status/"+url.PathEscape(id), nil, &doc)
	if IsNotFound(err) {
		return jobs.Remote{State: jobs.RemoteNotFound}, nil
	}
	if err != nil {
		return jobs.Remote{}, err
	}
	return doc.remote(), nil
}

// Cancel is a no-op: the analysis service has no cancel endpoint, so a
// cancelled analysis simply stops being polled.
func (a *AnalysisClient) Cancel(ctx context.Context, id string) error {
	a.c.logger.Debug("analysis cancel is local only", "job_id", id)
	return nil
}

// FetchEDL downloads and parses the analysis XML for a project.
func (a *AnalysisClient) FetchEDL(ctx context.Context, project string) (*edl.Project, error) {
	data, err := a.c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project)+"/edl", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch edl for %q: %w", project, err)
	}
	p, err := edl.ParseAnalysisXML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse edl for %q: %w", project, err)
	}
	return p, nil
}

// Import fetches the EDL and merges the word-level metadata when the service
// has it. Missing metadata is not an error; merged reports how many clips
// picked up transcript timing.
func (a *AnalysisClient) Import(ctx context.Context, project string) (p *edl.Project, merged int, err error) {
	p, err = a.FetchEDL(ctx, project)
	if err != nil {
		return nil, 0, err
	}

	data, err := a.c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project)+"/analysis", nil)
	if IsNotFound(err) {
		a.c.logger.Info("no analysis metadata yet", "project", project)
		return p, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("fetch metadata for %q: %w", project, err)
	}

	merged, err = edl.MergeMetadata(p, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("merge metadata for %q: %w", project, err)
	}
	return p, merged, nil
}
