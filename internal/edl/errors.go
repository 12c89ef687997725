package edl

import (
	"errors"
	"fmt"
)

// Kind classifies an edit failure by how the caller should remediate it.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindResolution       Kind = "resolution"
	KindDataAvailability Kind = "data_availability"
	KindUnknown          Kind = "unknown"
)

var (
	ErrInvalidProject = errors.New("invalid project")

	// Validation failures.
	ErrSplitOutOfRange  = errors.New("split point invalid (too close to edge)")
	ErrCutOutOfBounds   = errors.New("cut range outside clip bounds")
	ErrReorderMismatch  = errors.New("reorder must be a permutation of the current clips")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoBgMusic        = errors.New("project has no background music")
	ErrReservedTrack    = errors.New("track is reserved")
	ErrFragmentTooShort = errors.New("edit would leave no playable material")

	// Resolution failures.
	ErrClipNotFound      = errors.New("clip not found")
	ErrWordNotFound      = errors.New("word not found in transcript")
	ErrAudioClipNotFound = errors.New("audio clip not found")
	ErrOverlayNotFound   = errors.New("overlay not found")
	ErrTrackNotFound     = errors.New("track not found")

	// Data-availability gaps.
	ErrNoTranscript = errors.New("no detailed word data available")
)

// KindOf maps an error returned by this package to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTranscript):
		return KindDataAvailability
	case errors.Is(err, ErrClipNotFound),
		errors.Is(err, ErrWordNotFound),
		errors.Is(err, ErrAudioClipNotFound),
		errors.Is(err, ErrOverlayNotFound),
		errors.Is(err, ErrTrackNotFound):
		return KindResolution
	case errors.Is(err, ErrSplitOutOfRange),
		errors.Is(err, ErrCutOutOfBounds),
		errors.Is(err, ErrReorderMismatch),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNoBgMusic),
		errors.Is(err, ErrReservedTrack),
		errors.Is(err, ErrFragmentTooShort),
		errors.Is(err, ErrInvalidProject):
		return KindValidation
	default:
		return KindUnknown
	}
}

func clipNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrClipNotFound, id)
}
