package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

const DefaultTickInterval = 33 * time.Millisecond

// SnapshotSource yields the latest immutable project snapshot. Returned
// projects must not be mutated.
type SnapshotSource interface {
	Snapshot() *edl.Project
}

// Frame is the engine's view of one reconciliation pass.
type Frame struct {
	Time      float64           `json:"time"`
	Total     float64           `json:"total"`
	State     State             `json:"state"`
	KeepOnly  bool              `json:"keepOnly"`
	Master    float64           `json:"masterVolume"`
	ClipID    string            `json:"clipId,omitempty"`
	ClipIndex int               `json:"clipIndex"`
	Overlays  []edl.TextOverlay `json:"overlays"`
	Intents   []Intent          `json:"intents"`
	Resynced  []string          `json:"resynced,omitempty"`
	Commands  []ElementCommand  `json:"commands,omitempty"`
}

type EngineConfig struct {
	Source   SnapshotSource
	Factory  ElementFactory
	Deck     *RemoteDeck
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Engine owns the playback clock and reconciles media tracks on a ticker.
type Engine struct {
	source   SnapshotSource
	deck     *RemoteDeck
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	clock   *Clock
	master  float64
	syncer  *Syncer
	tl      *Timeline
	tlFor   *edl.Project
	last    Frame
	subs    map[int]chan Frame
	nextSub int
	running atomic.Bool
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	factory := cfg.Factory
	if factory == nil && cfg.Deck != nil {
		factory = cfg.Deck.Factory
	}
	return &Engine{
		source:   cfg.Source,
		deck:     cfg.Deck,
		interval: cfg.Interval,
		now:      cfg.Now,
		logger:   cfg.Logger,
		clock:    NewClock(),
		master:   1,
		syncer:   NewSyncer(factory, cfg.Logger),
		subs:     make(map[int]chan Frame),
	}
}

// Start runs the tick loop until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	if e.running.Swap(true) {
		return
	}
	e.logger.Info("playback engine started", "interval", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("playback engine stopping")
			e.mu.Lock()
			e.clock.Pause()
			e.syncer.Close()
			e.mu.Unlock()
			e.running.Store(false)
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Step advances the clock once and reconciles every track.
func (e *Engine) Step() Frame {
	return e.update(true, nil)
}

func (e *Engine) Play() Frame {
	return e.update(false, func(now time.Time, tl *Timeline) { e.clock.Play(now, tl) })
}

func (e *Engine) Pause() Frame {
	return e.update(false, func(time.Time, *Timeline) { e.clock.Pause() })
}

func (e *Engine) Toggle() Frame {
	return e.update(false, func(now time.Time, tl *Timeline) { e.clock.Toggle(now, tl) })
}

func (e *Engine) Seek(t float64) Frame {
	return e.update(false, func(_ time.Time, tl *Timeline) { e.clock.Seek(t, tl) })
}

// SeekToClip moves the playhead to the start of a clip.
func (e *Engine) SeekToClip(id string) (Frame, error) {
	var clips []edl.Clip
	if snap := e.snapshot(); snap != nil {
		clips = snap.EDL
	}
	start, ok := NewTimeline(clips).StartOfClip(id)
	if !ok {
		return Frame{}, edl.ErrClipNotFound
	}
	return e.Seek(start), nil
}

func (e *Engine) SetKeepOnly(v bool) Frame {
	return e.update(false, func(time.Time, *Timeline) { e.clock.SetKeepOnly(v) })
}

func (e *Engine) SetMasterVolume(v float64) Frame {
	return e.update(false, func(time.Time, *Timeline) { e.master = edl.Clamp01(v) })
}

// ReportPosition feeds a preview client's observed position for a slot.
func (e *Engine) ReportPosition(slot string, pos float64) {
	if e.deck != nil {
		e.deck.Report(slot, pos)
	}
}

// State returns the most recent frame without advancing the clock.
func (e *Engine) State() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Subscribe returns a channel of frames and a cancel func. Slow subscribers
// miss frames rather than blocking the loop.
func (e *Engine) Subscribe() (<-chan Frame, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Frame, 8)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) update(advance bool, mutate func(now time.Time, tl *Timeline)) Frame {
	snap := e.snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	tl := e.timeline(snap)
	e.clock.Clamp(tl)
	if mutate != nil {
		mutate(now, tl)
	}
	wasPlaying := e.clock.Playing()
	if advance {
		e.clock.Tick(now, tl)
	}
	if wasPlaying && !e.clock.Playing() {
		e.logger.Debug("playback reached end of timeline")
	}

	t := e.clock.Current()
	playing := e.clock.Playing()
	intents := Plan(snap, tl, t, playing, e.master)
	resynced := e.syncer.Apply(intents, Threshold(playing, e.clock.ConsumeResync()))

	f := Frame{
		Time:      t,
		Total:     tl.Total(),
		State:     e.clock.State(),
		KeepOnly:  e.clock.KeepOnly(),
		Master:    e.master,
		ClipIndex: -1,
		Intents:   intents,
		Resynced:  resynced,
	}
	if a, ok := tl.ActiveAt(t); ok {
		f.ClipID = a.Clip.ID
		f.ClipIndex = a.Index
	}
	if snap != nil {
		f.Overlays = snap.OverlaysAt(t)
	}
	if e.deck != nil {
		f.Commands = e.deck.Drain()
	}
	e.last = f

	for _, ch := range e.subs {
		select {
		case ch <- f:
		default:
		}
	}
	return f
}

func (e *Engine) snapshot() *edl.Project {
	if e.source == nil {
		return nil
	}
	return e.source.Snapshot()
}

// timeline rebuilds the index only when the snapshot pointer changes.
// Callers hold e.mu.
func (e *Engine) timeline(snap *edl.Project) *Timeline {
	if e.tl != nil && e.tlFor == snap {
		return e.tl
	}
	var clips []edl.Clip
	if snap != nil {
		clips = snap.EDL
	}
	e.tl = NewTimeline(clips)
	e.tlFor = snap
	return e.tl
}
