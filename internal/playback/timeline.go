// Package playback drives the virtual playback clock over a project snapshot
// and reconciles independently buffered media tracks against it.
package playback

import (
	"sort"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// SkipEpsilon is how far past a rejected clip's end keep-only playback lands.
const SkipEpsilon = 0.001

// Active is the clip under the playhead and where it begins on the timeline.
type Active struct {
	Index         int
	Clip          edl.Clip
	TimelineStart float64
}

// End returns the timeline time at which the active clip ends.
func (a Active) End() float64 {
	return a.TimelineStart + a.Clip.Duration()
}

// SourceTime maps timeline time t to a position in the clip's source media.
func (a Active) SourceTime(t float64) float64 {
	return a.Clip.Start + (t - a.TimelineStart)
}

// Timeline indexes an EDL by prefix sums so the active clip is found by
// binary search.
type Timeline struct {
	clips  []edl.Clip
	bounds []float64
}

func NewTimeline(clips []edl.Clip) *Timeline {
	bounds := make([]float64, len(clips)+1)
	for i, c := range clips {
		d := c.Duration()
		if d < 0 {
			d = 0
		}
		bounds[i+1] = bounds[i] + d
	}
	return &Timeline{clips: clips, bounds: bounds}
}

func (tl *Timeline) Total() float64 {
	return tl.bounds[len(tl.bounds)-1]
}

func (tl *Timeline) Len() int {
	return len(tl.clips)
}

// ClipStart returns the timeline position of clip i.
func (tl *Timeline) ClipStart(i int) float64 {
	return tl.bounds[i]
}

// ActiveAt returns the first clip whose window [start, end) contains t.
// Nothing is active before 0 or at and after Total.
func (tl *Timeline) ActiveAt(t float64) (Active, bool) {
	if t < 0 || t >= tl.Total() {
		return Active{}, false
	}
	i := sort.Search(len(tl.clips), func(i int) bool { return tl.bounds[i+1] > t })
	if i >= len(tl.clips) {
		return Active{}, false
	}
	return Active{Index: i, Clip: tl.clips[i], TimelineStart: tl.bounds[i]}, true
}

// SkipRejected advances t past any run of rejected clips. The result is
// either inside a kept clip or at or beyond Total.
func (tl *Timeline) SkipRejected(t float64) float64 {
	for {
		a, ok := tl.ActiveAt(t)
		if !ok || a.Clip.Keep {
			return t
		}
		t = a.End() + SkipEpsilon
	}
}

// StartOfClip returns the timeline start of the clip with the given id.
func (tl *Timeline) StartOfClip(id string) (float64, bool) {
	for i, c := range tl.clips {
		if c.ID == id {
			return tl.bounds[i], true
		}
	}
	return 0, false
}
