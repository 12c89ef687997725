package edl

import (
	"strings"

	"github.com/google/uuid"
)

// newSuffix mints the random part of derived clip ids. Tests may replace it.
var newSuffix = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewID returns a prefixed random identifier such as "audio-3f2c9e1a".
func NewID(prefix string) string {
	return prefix + "-" + newSuffix()
}

func derivedID(base, tag string) string {
	return base + "_" + tag + "_" + newSuffix()
}
