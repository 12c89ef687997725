// Package shorts derives viral-short sub-timelines from a base project and
// restores the base project when the user leaves the short.
package shorts

import (
	"errors"
	"fmt"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

var (
	ErrShortNotFound     = errors.New("short not found")
	ErrNoResolvableClips = errors.New("could not find clips for this short")
	ErrNotInShort        = errors.New("not editing a short")
	ErrNilProject        = errors.New("no project loaded")
)

// Result describes how a short's clip references resolved.
type Result struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Requested int      `json:"requested"`
	Resolved  []string `json:"resolved"`
	Missing   []string `json:"missing,omitempty"`
}

// Partial reports whether some referenced clips no longer exist.
func (r Result) Partial() bool {
	return len(r.Missing) > 0
}

// Manager holds at most one snapshot of the base project while a short is
// being edited. Edits made inside a short are discarded on Exit.
type Manager struct {
	original *edl.Project
	index    int
}

func NewManager() *Manager {
	return &Manager{index: -1}
}

// Active reports whether a short is currently checked out.
func (m *Manager) Active() bool {
	return m.original != nil
}

// Index returns the checked-out short index, or -1.
func (m *Manager) Index() int {
	if m.original == nil {
		return -1
	}
	return m.index
}

// Original returns the held base project snapshot, if any.
func (m *Manager) Original() *edl.Project {
	return m.original
}

// Enter builds the derived timeline for short index. Clip ids resolve against
// the base project, never against a previously derived short, so switching
// between shorts does not compound. Unresolved ids are dropped; only a short
// with no resolvable clips fails.
func (m *Manager) Enter(current *edl.Project, index int) (*edl.Project, Result, error) {
	if current == nil && m.original == nil {
		return nil, Result{}, ErrNilProject
	}
	base := m.original
	if base == nil {
		base = current
	}
	if index < 0 || index >= len(base.ViralShorts) {
		return nil, Result{}, fmt.Errorf("%w: index %d of %d", ErrShortNotFound, index, len(base.ViralShorts))
	}

	short := base.ViralShorts[index]
	derived, res := Derive(base, short)
	res.Index = index
	if len(res.Resolved) == 0 {
		return nil, res, fmt.Errorf("%w: %q", ErrNoResolvableClips, short.Title)
	}

	if m.original == nil {
		m.original = current.Clone()
	}
	m.index = index
	return derived, res, nil
}

// Exit returns the base project snapshot and clears the slot.
func (m *Manager) Exit() (*edl.Project, error) {
	if m.original == nil {
		return nil, ErrNotInShort
	}
	restored := m.original
	m.original = nil
	m.index = -1
	return restored, nil
}

// Derive resolves short against base and returns the derived project: clips in
// short order with keep forced on, overlays, secondary audio and background
// music cleared, and the name suffixed with the short title.
func Derive(base *edl.Project, short edl.ViralShort) (*edl.Project, Result) {
	derived := base.Clone()
	res := Result{Title: short.Title, Requested: len(short.ClipIDs)}

	clips := make([]edl.Clip, 0, len(short.ClipIDs))
	seen := make(map[string]bool, len(short.ClipIDs))
	for _, id := range short.ClipIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		idx := base.ClipIndex(id)
		if idx < 0 {
			res.Missing = append(res.Missing, id)
			continue
		}
		c := derived.EDL[idx]
		c.Keep = true
		clips = append(clips, c)
		res.Resolved = append(res.Resolved, id)
	}

	derived.Name = fmt.Sprintf("%s [%s]", base.Name, short.Title)
	derived.EDL = clips
	derived.Overlays = []edl.TextOverlay{}
	derived.AudioClips = []edl.AudioClip{}
	derived.BgMusic = nil
	return derived, res
}
