package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/export"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
	"github.com/rampellisaieshwar/GravityEdits/internal/shorts"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

const (
	CodeValidation  = "VALIDATION_FAILED"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "DATA_UNAVAILABLE"
	CodeUpstream    = "UPSTREAM_ERROR"
	CodeTimedOut    = "TIMED_OUT"
	CodeConflict    = "CONFLICT"
	CodeBadRequest  = "BAD_REQUEST"
	CodeInternal    = "INTERNAL_ERROR"
)

// errorStatus classifies err into an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch edl.KindOf(err) {
	case edl.KindValidation:
		return http.StatusBadRequest, CodeValidation
	case edl.KindResolution:
		return http.StatusNotFound, CodeNotFound
	case edl.KindDataAvailability:
		return http.StatusUnprocessableEntity, CodeUnavailable
	}

	switch {
	case errors.Is(err, jobs.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimedOut
	case cloud.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case cloud.IsUpstream(err):
		return http.StatusBadGateway, CodeUpstream
	case errors.Is(err, session.ErrNoProject),
		errors.Is(err, shorts.ErrNilProject),
		errors.Is(err, jobs.ErrNoJob),
		errors.Is(err, session.ErrNothingToUndo),
		errors.Is(err, shorts.ErrNotInShort),
		errors.Is(err, export.ErrEmptyRender):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, shorts.ErrShortNotFound),
		errors.Is(err, shorts.ErrNoResolvableClips),
		errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, jobs.ErrJobLost):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, export.ErrBadOutputDir):
		return http.StatusBadRequest, CodeValidation
	}
	return http.StatusInternalServerError, CodeInternal
}

// writeServiceError writes err using the error envelope. Internal errors are
// logged and their detail withheld from the client.
func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, status, "internal error", code)
		return
	}
	WriteError(w, status, err.Error(), code)
}
