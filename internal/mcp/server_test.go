package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sampleProject() *edl.Project {
	p := edl.NewProject("Trip")
	p.EDL = []edl.Clip{
		{ID: "1", Source: "a.mp4", Keep: true, Start: 0, End: 4, Words: []edl.Word{{Word: "um", Start: 1, End: 1.4}}},
		{ID: "2", Source: "a.mp4", Keep: false, Start: 4, End: 6},
		{ID: "3", Source: "b.mp4", Keep: true, Start: 0, End: 3},
	}
	p.ViralShorts = []edl.ViralShort{{Title: "Best Bit", ClipIDs: []string{"3", "gone"}}}
	return p
}

type fixture struct {
	session *session.Session
	engine  *playback.Engine
	client  *sdkmcp.ClientSession
}

func newFixture(t *testing.T, withEngine bool) *fixture {
	t.Helper()

	sess := session.New(session.Options{Logger: testLogger()})
	require.NoError(t, sess.Load(sampleProject()))

	var engine *playback.Engine
	if withEngine {
		engine = playback.NewEngine(playback.EngineConfig{Source: sess, Deck: playback.NewRemoteDeck(time.Now), Logger: testLogger()})
	}

	server := NewServer(Config{
		Session:  sess,
		Executor: command.NewExecutor(testLogger()),
		Engine:   engine,
		Version:  "test",
		Logger:   testLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return &fixture{session: sess, engine: engine, client: cs}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := f.client.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

func TestListTools(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.client.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"split_clip", "remove_segment", "remove_word", "cut_clip", "keep_clip", "edit_transcript",
		"add_text", "undo_action", "get_timeline", "seek", "enter_short", "exit_short", "run_command",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestCutAndUndo(t *testing.T) {
	f := newFixture(t, false)

	text, isErr := f.call(t, "cut_clip", map[string]any{"clip_id": "1"})
	require.False(t, isErr)
	require.Equal(t, "Cut Clip 1 (Rejected)", text)
	require.False(t, f.session.Snapshot().EDL[0].Keep)

	text, isErr = f.call(t, "undo_action", nil)
	require.False(t, isErr, text)
	require.True(t, f.session.Snapshot().EDL[0].Keep)

	_, isErr = f.call(t, "undo_action", nil)
	require.True(t, isErr, "undo with empty history")
}

func TestSplitClip(t *testing.T) {
	f := newFixture(t, false)

	_, isErr := f.call(t, "split_clip", map[string]any{"clip_id": "1", "time": 2.0})
	require.False(t, isErr)
	require.Len(t, f.session.Snapshot().EDL, 4)

	text, isErr := f.call(t, "split_clip", map[string]any{"clip_id": "1", "time": 0.05})
	require.True(t, isErr)
	require.NotEmpty(t, text)
	require.Len(t, f.session.Snapshot().EDL, 4, "failed split leaves the timeline alone")
}

func TestRemoveWord(t *testing.T) {
	f := newFixture(t, false)

	text, isErr := f.call(t, "remove_word", map[string]any{"clip_id": "1", "word": "Um,"})
	require.False(t, isErr, text)
	require.Contains(t, text, `"um"`)

	_, isErr = f.call(t, "remove_word", map[string]any{"clip_id": "3", "word": "hi"})
	require.True(t, isErr, "clip 3 has no transcript")
}

func TestAddText_Defaults(t *testing.T) {
	f := newFixture(t, false)

	_, isErr := f.call(t, "add_text", map[string]any{"content": "Wow", "start": 1.0})
	require.False(t, isErr)

	overlays := f.session.Snapshot().Overlays
	require.Len(t, overlays, 1)
	require.Equal(t, command.DefaultTextDuration, overlays[0].Duration)
	require.Equal(t, command.DefaultTextStyle, overlays[0].Style)
	require.Equal(t, edl.OriginAI, overlays[0].Origin)

	_, isErr = f.call(t, "add_text", map[string]any{"content": "  "})
	require.True(t, isErr)
}

func TestGetTimeline(t *testing.T) {
	f := newFixture(t, true)

	text, isErr := f.call(t, "get_timeline", nil)
	require.False(t, isErr)

	var view timelineView
	require.NoError(t, json.Unmarshal([]byte(text), &view))
	require.Equal(t, "Trip", view.Name)
	require.Len(t, view.Clips, 3)
	require.Equal(t, 9.0, view.Duration)
	require.Equal(t, []string{"Best Bit"}, view.Shorts)
	require.Equal(t, -1, view.ActiveShort)
	require.NotNil(t, view.Playback)
}

func TestSeek(t *testing.T) {
	f := newFixture(t, true)

	_, isErr := f.call(t, "seek", map[string]any{"clip_id": "3"})
	require.False(t, isErr)
	require.Equal(t, 6.0, f.engine.State().Time)

	_, isErr = f.call(t, "seek", map[string]any{"time": 1.5})
	require.False(t, isErr)
	require.Equal(t, 1.5, f.engine.State().Time)

	_, isErr = f.call(t, "seek", map[string]any{"clip_id": "nope"})
	require.True(t, isErr)

	_, isErr = f.call(t, "seek", nil)
	require.True(t, isErr)
}

func TestSeek_NoEngine(t *testing.T) {
	f := newFixture(t, false)

	text, isErr := f.call(t, "seek", map[string]any{"time": 1.0})
	require.True(t, isErr)
	require.Equal(t, errNoPlayback.Error(), text)
}

func TestShorts(t *testing.T) {
	f := newFixture(t, false)

	text, isErr := f.call(t, "enter_short", map[string]any{"index": 0})
	require.False(t, isErr)
	require.Contains(t, text, "missing clips: gone")
	require.Equal(t, 0, f.session.ActiveShort())
	require.Equal(t, "Trip [Best Bit]", f.session.Snapshot().Name)

	_, isErr = f.call(t, "exit_short", nil)
	require.False(t, isErr)
	require.Equal(t, "Trip", f.session.Snapshot().Name)

	_, isErr = f.call(t, "exit_short", nil)
	require.True(t, isErr)

	_, isErr = f.call(t, "enter_short", map[string]any{"index": 5})
	require.True(t, isErr)
}

func TestRunCommand(t *testing.T) {
	f := newFixture(t, false)

	text, isErr := f.call(t, "run_command", map[string]any{
		"text": "gravity_ai.keep_clip(clip_id=\"2\")\ngravity_ai.edit_transcript(clip_id=\"3\", text=\"outro\")",
	})
	require.False(t, isErr, text)
	snap := f.session.Snapshot()
	require.True(t, snap.EDL[1].Keep)
	require.Equal(t, "outro", snap.EDL[2].Text)

	_, isErr = f.call(t, "run_command", map[string]any{"text": "hello there"})
	require.True(t, isErr)
}
