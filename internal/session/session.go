// Package session owns the live project. Every mutation produces a new
// immutable snapshot that readers such as the playback engine load without
// locking.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/shorts"
)

const DefaultHistoryLimit = 50

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNoProject     = errors.New("no project loaded")
)

type EventKind string

const (
	EventLoad       EventKind = "load"
	EventEdit       EventKind = "edit"
	EventUndo       EventKind = "undo"
	EventShortEnter EventKind = "short_enter"
	EventShortExit  EventKind = "short_exit"
)

// Event is delivered to listeners after a snapshot is published.
type Event struct {
	Kind    EventKind
	Op      string
	Version uint64
	Project *edl.Project
	InShort bool
}

type Listener func(Event)

type Options struct {
	HistoryLimit int
	Logger       *slog.Logger
}

type Session struct {
	logger *slog.Logger
	limit  int

	snap    atomic.Pointer[edl.Project]
	version atomic.Uint64

	mu        sync.Mutex
	history   []*edl.Project
	saved     []*edl.Project
	shorts    *shorts.Manager
	listeners []Listener
}

func New(opts Options) *Session {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		logger: opts.Logger,
		limit:  opts.HistoryLimit,
		shorts: shorts.NewManager(),
	}
}

// Snapshot returns the current project. Callers must treat it as read-only.
func (s *Session) Snapshot() *edl.Project {
	return s.snap.Load()
}

func (s *Session) Version() uint64 {
	return s.version.Load()
}

// OnChange registers a listener. Listeners run on the mutating goroutine
// after the session lock is released.
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load replaces the project, dropping undo history and any open short.
func (s *Session) Load(p *edl.Project) error {
	if p == nil {
		return ErrNoProject
	}
	p = p.Clone()
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.history = nil
	s.saved = nil
	s.shorts = shorts.NewManager()
	ev := s.publishLocked(EventLoad, "load", p)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// Apply runs fn against a clone of the current project and publishes the
// result if fn succeeds. A failing fn leaves the session untouched.
func (s *Session) Apply(op string, fn func(p *edl.Project) error) error {
	s.mu.Lock()
	cur := s.snap.Load()
	if cur == nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s produced an invalid project: %w", op, err)
	}
	s.pushLocked(cur)
	ev := s.publishLocked(EventEdit, op, next)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// Execute runs tool-call text through the command interpreter against
// the current snapshot and commits the result as a single undoable edit.
func (s *Session) Execute(ex *command.Executor, text string) (command.Report, error) {
	return s.run(func(cur *edl.Project, undo command.UndoFunc) command.Report {
		return ex.Execute(cur, text, undo)
	})
}

// ExecuteReply runs the tool calls fenced in an assistant reply through the
// same commit and undo path as Execute.
func (s *Session) ExecuteReply(ex *command.Executor, reply string) (command.Report, error) {
	return s.run(func(cur *edl.Project, undo command.UndoFunc) command.Report {
		return ex.ExecuteReply(cur, reply, undo)
	})
}

// Run applies already-typed commands with the same commit and undo
// semantics as Execute.
func (s *Session) Run(ex *command.Executor, cmds ...command.Command) (command.Report, error) {
	return s.run(func(cur *edl.Project, undo command.UndoFunc) command.Report {
		return ex.Run(cur, cmds, nil, undo)
	})
}

func (s *Session) run(exec func(cur *edl.Project, undo command.UndoFunc) command.Report) (command.Report, error) {
	s.mu.Lock()
	cur := s.snap.Load()
	if cur == nil {
		s.mu.Unlock()
		return command.Report{}, ErrNoProject
	}

	var events []Event
	rep := exec(cur, func() error {
		ev, err := s.undoLocked()
		if err == nil {
			events = append(events, ev)
		}
		return err
	})
	if rep.Committed {
		s.pushLocked(cur)
		events = append(events, s.publishLocked(EventEdit, "command", rep.Project))
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
	return rep, nil
}

// Undo restores the previous snapshot.
func (s *Session) Undo() error {
	s.mu.Lock()
	ev, err := s.undoLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(ev)
	return nil
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 0
}

// EnterShort swaps in the derived timeline of a viral short. Undo history is
// set aside and restored on ExitShort.
func (s *Session) EnterShort(index int) (shorts.Result, error) {
	s.mu.Lock()
	cur := s.snap.Load()
	if cur == nil {
		s.mu.Unlock()
		return shorts.Result{}, ErrNoProject
	}
	wasActive := s.shorts.Active()
	derived, res, err := s.shorts.Enter(cur, index)
	if err != nil {
		s.mu.Unlock()
		return res, err
	}
	if !wasActive {
		s.saved = s.history
	}
	s.history = nil
	ev := s.publishLocked(EventShortEnter, fmt.Sprintf("short %d", index), derived)
	s.mu.Unlock()

	if res.Partial() {
		s.logger.Warn("short references missing clips", "short", res.Title, "missing", res.Missing)
	}
	s.notify(ev)
	return res, nil
}

// ExitShort restores the base project. Edits made inside the short are lost.
func (s *Session) ExitShort() error {
	s.mu.Lock()
	restored, err := s.shorts.Exit()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.history = s.saved
	s.saved = nil
	ev := s.publishLocked(EventShortExit, "exit short", restored)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// ActiveShort returns the open short index, or -1.
func (s *Session) ActiveShort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shorts.Index()
}

// BaseProject returns the base project: the held original while a short is
// open, otherwise the current snapshot.
func (s *Session) BaseProject() *edl.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.shorts.Original(); o != nil {
		return o
	}
	return s.snap.Load()
}

func (s *Session) undoLocked() (Event, error) {
	n := len(s.history)
	if n == 0 {
		return Event{}, ErrNothingToUndo
	}
	prev := s.history[n-1]
	s.history[n-1] = nil
	s.history = s.history[:n-1]
	return s.publishLocked(EventUndo, "undo", prev), nil
}

func (s *Session) pushLocked(p *edl.Project) {
	s.history = append(s.history, p)
	if over := len(s.history) - s.limit; over > 0 {
		copy(s.history, s.history[over:])
		for i := len(s.history) - over; i < len(s.history); i++ {
			s.history[i] = nil
		}
		s.history = s.history[:len(s.history)-over]
	}
}

func (s *Session) publishLocked(kind EventKind, op string, p *edl.Project) Event {
	s.snap.Store(p)
	v := s.version.Add(1)
	s.logger.Debug("project snapshot published", "kind", kind, "op", op, "version", v, "clips", len(p.EDL))
	return Event{
		Kind:    kind,
		Op:      op,
		Version: v,
		Project: p,
		InShort: s.shorts.Active(),
	}
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}
