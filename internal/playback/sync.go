package playback

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// Drift thresholds before a track is re-seeked to the clock.
const (
	PlayingDriftThreshold = 0.8
	TightDriftThreshold   = 0.1
)

const (
	SlotVideo = "video"
	SlotMusic = "music"
)

// AudioSlot names the reconciliation slot of a secondary audio clip.
func AudioSlot(clipID string) string {
	return "audio:" + clipID
}

// Intent is the desired state of one media resource at the current instant.
type Intent struct {
	Slot     string  `json:"slot"`
	TrackKey string  `json:"trackKey"`
	ClipID   string  `json:"clipId,omitempty"`
	Source   string  `json:"source"`
	Position float64 `json:"position"`
	Volume   float64 `json:"volume"`
	Playing  bool    `json:"playing"`
}

// Threshold returns the drift tolerance for the current transport state.
func Threshold(playing, tight bool) float64 {
	if playing && !tight {
		return PlayingDriftThreshold
	}
	return TightDriftThreshold
}

// Plan computes the intent of every media resource active at time t. Video
// comes first, then audio clips by track, then background music.
func Plan(p *edl.Project, tl *Timeline, t float64, playing bool, master float64) []Intent {
	if p == nil {
		return nil
	}
	master = edl.Clamp01(master)
	var intents []Intent

	if a, ok := tl.ActiveAt(t); ok {
		intents = append(intents, Intent{
			Slot:     SlotVideo,
			TrackKey: edl.VideoTrackKey,
			ClipID:   a.Clip.ID,
			Source:   a.Clip.Source,
			Position: a.SourceTime(t),
			Volume:   edl.Clamp01(p.TrackVolume(edl.VideoTrackKey) * master),
			Playing:  playing,
		})
	}

	for _, ac := range p.AudioClipsAt(t) {
		key := edl.AudioTrackKey(ac.Track)
		intents = append(intents, Intent{
			Slot:     AudioSlot(ac.ID),
			TrackKey: key,
			ClipID:   ac.ID,
			Source:   ac.Source,
			Position: ac.Offset + (t - ac.Start),
			Volume:   edl.Clamp01(p.TrackVolume(key) * master),
			Playing:  playing,
		})
	}

	if m := p.BgMusic; m != nil && m.Source != "" && t >= m.Start {
		intents = append(intents, Intent{
			Slot:     SlotMusic,
			TrackKey: edl.MusicTrackKey,
			Source:   m.Source,
			Position: math.Mod(t-m.Start, m.Length()),
			Volume:   edl.Clamp01(p.TrackVolume(edl.MusicTrackKey) * master),
			Playing:  playing,
		})
	}
	return intents
}

// MediaElement is one independently buffered media resource.
type MediaElement interface {
	Position() float64
	Seek(pos float64)
	SetVolume(v float64)
	Play()
	Pause()
	Close()
}

// ElementFactory creates the element that will play an intent's source.
type ElementFactory func(in Intent) (MediaElement, error)

type slotState struct {
	el      MediaElement
	source  string
	volume  float64
	playing bool
}

// Syncer drives a set of media elements toward the planned intents.
type Syncer struct {
	factory ElementFactory
	logger  *slog.Logger
	slots   map[string]*slotState
}

func NewSyncer(factory ElementFactory, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{factory: factory, logger: logger, slots: make(map[string]*slotState)}
}

// Apply reconciles elements with intents and returns the slots that were
// re-seeked. Elements whose slot is no longer planned are paused and closed.
func (s *Syncer) Apply(intents []Intent, threshold float64) []string {
	var seeked []string
	live := make(map[string]bool, len(intents))

	for _, in := range intents {
		live[in.Slot] = true
		st, fresh, err := s.slot(in)
		if err != nil {
			s.logger.Warn("media element unavailable", "slot", in.Slot, "source", in.Source, "error", err)
			continue
		}

		if fresh || st.volume != in.Volume {
			st.el.SetVolume(in.Volume)
			st.volume = in.Volume
		}
		if fresh || math.Abs(st.el.Position()-in.Position) > threshold {
			st.el.Seek(in.Position)
			seeked = append(seeked, in.Slot)
		}
		if fresh || st.playing != in.Playing {
			if in.Playing {
				st.el.Play()
			} else {
				st.el.Pause()
			}
			st.playing = in.Playing
		}
	}

	for slot, st := range s.slots {
		if !live[slot] {
			s.release(slot, st)
		}
	}
	sort.Strings(seeked)
	return seeked
}

// Slots lists the slots currently holding an element.
func (s *Syncer) Slots() []string {
	out := make([]string, 0, len(s.slots))
	for slot := range s.slots {
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}

// Close releases every element.
func (s *Syncer) Close() {
	for slot, st := range s.slots {
		s.release(slot, st)
	}
}

func (s *Syncer) slot(in Intent) (*slotState, bool, error) {
	st, ok := s.slots[in.Slot]
	if ok && st.source == in.Source {
		return st, false, nil
	}
	if ok {
		s.release(in.Slot, st)
	}
	if s.factory == nil {
		return nil, false, fmt.Errorf("no media factory configured")
	}
	el, err := s.factory(in)
	if err != nil {
		return nil, false, err
	}
	st = &slotState{el: el, source: in.Source}
	s.slots[in.Slot] = st
	return st, true, nil
}

func (s *Syncer) release(slot string, st *slotState) {
	st.el.Pause()
	st.el.Close()
	delete(s.slots, slot)
}
