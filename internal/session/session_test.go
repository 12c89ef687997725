package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/shorts"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleProject() *edl.Project {
	p := edl.NewProject("demo")
	p.EDL = []edl.Clip{
		{ID: "A", Source: "a.mp4", Keep: true, Start: 0, End: 5},
		{ID: "B", Source: "b.mp4", Keep: false, Start: 5, End: 8},
		{ID: "C", Source: "c.mp4", Keep: true, Start: 8, End: 12},
	}
	p.ViralShorts = []edl.ViralShort{
		{Title: "Hook", ClipIDs: []string{"C", "B"}},
		{Title: "Stale", ClipIDs: []string{"gone"}},
	}
	return p
}

func loaded(t *testing.T) *Session {
	t.Helper()
	s := New(Options{Logger: testLogger()})
	require.NoError(t, s.Load(sampleProject()))
	return s
}

func TestApply_PublishesNewSnapshot(t *testing.T) {
	s := loaded(t)
	before := s.Snapshot()
	v := s.Version()

	require.NoError(t, s.Apply("split", func(p *edl.Project) error {
		_, err := p.Split("A", 2)
		return err
	}))

	after := s.Snapshot()
	require.NotSame(t, before, after)
	require.Len(t, before.EDL, 3, "published snapshots are immutable")
	require.Len(t, after.EDL, 4)
	require.Equal(t, v+1, s.Version())
}

func TestApply_FailureKeepsSnapshot(t *testing.T) {
	s := loaded(t)
	before := s.Snapshot()

	err := s.Apply("split", func(p *edl.Project) error {
		_, err := p.Split("A", 0.01)
		return err
	})
	require.ErrorIs(t, err, edl.ErrSplitOutOfRange)
	require.Same(t, before, s.Snapshot())
	require.False(t, s.CanUndo())
}

func TestApply_NoProject(t *testing.T) {
	s := New(Options{Logger: testLogger()})
	require.ErrorIs(t, s.Apply("x", func(*edl.Project) error { return nil }), ErrNoProject)
	require.Nil(t, s.Snapshot())
}

func TestUndo_RestoresAndIsBounded(t *testing.T) {
	s := New(Options{Logger: testLogger(), HistoryLimit: 3})
	require.NoError(t, s.Load(sampleProject()))

	for i := 0; i < 5; i++ {
		keep := i%2 == 0
		require.NoError(t, s.Apply("toggle", func(p *edl.Project) error { return p.SetKeep("B", keep) }))
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Undo())
	}
	require.ErrorIs(t, s.Undo(), ErrNothingToUndo)
	// Oldest retained entry is the state after the second edit.
	require.False(t, s.Snapshot().EDL[1].Keep)
}

func TestExecute_CommitsAndUndoes(t *testing.T) {
	s := loaded(t)
	ex := command.NewExecutor(testLogger())

	rep, err := s.Execute(ex, "```tool_code\ngravity_ai.keep_clip(clip_id=\"B\")\n```")
	require.NoError(t, err)
	require.True(t, rep.Committed)
	require.True(t, s.Snapshot().EDL[1].Keep)

	rep, err = s.Execute(ex, "gravity_ai.undo_action()")
	require.NoError(t, err)
	require.True(t, rep.Undone)
	require.False(t, s.Snapshot().EDL[1].Keep)

	rep, err = s.Execute(ex, "undo_action()")
	require.NoError(t, err)
	require.False(t, rep.Undone)
	require.Equal(t, []string{"Undo is not available"}, rep.Messages())
}

func TestExecute_FailureDoesNotPublish(t *testing.T) {
	s := loaded(t)
	v := s.Version()
	rep, err := s.Execute(command.NewExecutor(testLogger()), `cut_clip(clip_id="Z")`)
	require.NoError(t, err)
	require.False(t, rep.Committed)
	require.Equal(t, v, s.Version())
}

func TestExecuteReply_OnlyFencedCallsCommit(t *testing.T) {
	s := loaded(t)
	ex := command.NewExecutor(testLogger())
	v := s.Version()

	rep, err := s.ExecuteReply(ex, "Want me to keep_clip(clip_id=\"B\")? Say the word.")
	require.NoError(t, err)
	require.True(t, rep.Unrecognized)
	require.Equal(t, v, s.Version())
	require.False(t, s.Snapshot().EDL[1].Keep)

	rep, err = s.ExecuteReply(ex, "Sure.\n```tool_code\ngravity_ai.keep_clip(clip_id=\"B\")\n```")
	require.NoError(t, err)
	require.True(t, rep.Committed)
	require.True(t, s.Snapshot().EDL[1].Keep)

	rep, err = s.ExecuteReply(ex, "```tool_code\ngravity_ai.undo_action()\n```")
	require.NoError(t, err)
	require.True(t, rep.Undone)
	require.False(t, s.Snapshot().EDL[1].Keep)
}

func TestRun_TypedCommands(t *testing.T) {
	s := loaded(t)
	ex := command.NewExecutor(testLogger())

	rep, err := s.Run(ex, command.CutClip{ClipID: "A"}, command.SplitClip{ClipID: "C", Time: 10})
	require.NoError(t, err)
	require.True(t, rep.Committed)
	require.Len(t, rep.Outcomes, 2)
	require.False(t, s.Snapshot().EDL[0].Keep)
	require.Len(t, s.Snapshot().EDL, 4)

	require.NoError(t, s.Undo())
	require.True(t, s.Snapshot().EDL[0].Keep, "both commands undo as one edit")
	require.Len(t, s.Snapshot().EDL, 3)

	_, err = New(Options{Logger: testLogger()}).Run(ex, command.Undo{})
	require.ErrorIs(t, err, ErrNoProject)
}

func TestShorts_EnterExit(t *testing.T) {
	s := loaded(t)
	require.NoError(t, s.Apply("transcript", func(p *edl.Project) error { return p.SetText("A", "intro") }))
	base := s.Snapshot()

	res, err := s.EnterShort(0)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "B"}, res.Resolved)
	require.Equal(t, 0, s.ActiveShort())
	require.Equal(t, "demo [Hook]", s.Snapshot().Name)
	require.False(t, s.CanUndo(), "history is set aside inside a short")
	require.Equal(t, base, s.BaseProject())

	require.NoError(t, s.Apply("edit", func(p *edl.Project) error { return p.SetKeep("B", false) }))
	require.True(t, s.CanUndo())

	require.NoError(t, s.ExitShort())
	require.Equal(t, base, s.Snapshot())
	require.Equal(t, -1, s.ActiveShort())
	require.True(t, s.CanUndo(), "base history restored")

	_, err = s.EnterShort(1)
	require.ErrorIs(t, err, shorts.ErrNoResolvableClips)
	require.ErrorIs(t, s.ExitShort(), shorts.ErrNotInShort)
}

func TestListeners(t *testing.T) {
	s := New(Options{Logger: testLogger()})
	var (
		mu    sync.Mutex
		kinds []EventKind
	)
	s.OnChange(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
		require.Same(t, ev.Project, s.Snapshot())
	})

	require.NoError(t, s.Load(sampleProject()))
	require.NoError(t, s.Apply("keep", func(p *edl.Project) error { return p.SetKeep("B", true) }))
	require.NoError(t, s.Undo())
	_, err := s.EnterShort(0)
	require.NoError(t, err)
	require.NoError(t, s.ExitShort())
	require.Error(t, s.Apply("bad", func(*edl.Project) error { return errors.New("boom") }))

	require.Equal(t, []EventKind{EventLoad, EventEdit, EventUndo, EventShortEnter, EventShortExit}, kinds)
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := loaded(t)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			p := s.Snapshot()
			total := 0.0
			for _, c := range p.EDL {
				total += c.Duration()
			}
			if total < 11.999 || total > 12.001 {
				t.Errorf("torn snapshot: total duration %v", total)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_ = s.Apply("split", func(p *edl.Project) error {
			_, err := p.Split(p.EDL[0].ID, p.EDL[0].Duration()/2)
			return err
		})
		if i%3 == 0 {
			_ = s.Undo()
		}
	}
	close(stop)
	wg.Wait()
}
