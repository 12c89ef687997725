package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

var errNoPlayback = errors.New("playback engine is not running")

type tools struct {
	session  *session.Session
	executor *command.Executor
	engine   *playback.Engine
	logger   *slog.Logger
}

type clipInput struct {
	ClipID string `json:"clip_id" jsonschema:"id of the clip as listed by get_timeline"`
}

type splitClipInput struct {
	ClipID string  `json:"clip_id" jsonschema:"id of the clip to split"`
	Time   float64 `json:"time" jsonschema:"source-absolute split time in seconds"`
}

type removeSegmentInput struct {
	ClipID string  `json:"clip_id" jsonschema:"id of the clip to cut from"`
	Start  float64 `json:"start" jsonschema:"source-absolute start of the removed range in seconds"`
	End    float64 `json:"end" jsonschema:"source-absolute end of the removed range in seconds"`
}

type removeWordInput struct {
	ClipID string `json:"clip_id" jsonschema:"id of the clip whose transcript contains the word"`
	Word   string `json:"word" jsonschema:"word to remove; punctuation and case are ignored"`
}

type editTranscriptInput struct {
	ClipID string `json:"clip_id" jsonschema:"id of the clip"`
	Text   string `json:"text" jsonschema:"replacement transcript text"`
}

type addTextInput struct {
	Content  string  `json:"content" jsonschema:"text to display"`
	Start    float64 `json:"start,omitempty" jsonschema:"timeline time in seconds where the text appears"`
	Duration float64 `json:"duration,omitempty" jsonschema:"seconds the text stays on screen (default 3)"`
	Style    string  `json:"style,omitempty" jsonschema:"pop, slide_up, fade or typewriter"`
}

type seekInput struct {
	Time   *float64 `json:"time,omitempty" jsonschema:"timeline time in seconds"`
	ClipID string   `json:"clip_id,omitempty" jsonschema:"seek to the start of this clip instead"`
}

type shortInput struct {
	Index int `json:"index" jsonschema:"zero-based index into the project's viral shorts"`
}

type runCommandInput struct {
	Text string `json:"text" jsonschema:"one or more gravity_ai tool-call statements"`
}

type emptyInput struct{}

// timelineView is the get_timeline result.
type timelineView struct {
	Name        string        `json:"name"`
	Version     uint64        `json:"version"`
	ActiveShort int           `json:"active_short"`
	CanUndo     bool          `json:"can_undo"`
	Duration    float64       `json:"duration"`
	Clips       []clipView    `json:"clips"`
	Overlays    int           `json:"overlays"`
	Shorts      []string      `json:"shorts"`
	Playback    *playbackView `json:"playback,omitempty"`
}

type clipView struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Keep   bool    `json:"keep"`
	Text   string  `json:"text,omitempty"`
	Words  int     `json:"words"`
}

type playbackView struct {
	Time   float64 `json:"time"`
	State  string  `json:"state"`
	ClipID string  `json:"clip_id,omitempty"`
}

func registerTools(server *sdkmcp.Server, t *tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameSplitClip,
		Description: "Split a clip into two at a source-absolute time",
	}, t.splitClip)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameRemoveSegment,
		Description: "Soft-delete a source-absolute time range from a clip",
	}, t.removeSegment)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameRemoveWord,
		Description: "Find a word in a clip's transcript and cut it out",
	}, t.removeWord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameCutClip,
		Description: "Mark a clip as rejected so playback and renders skip it",
	}, t.cutClip)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameKeepClip,
		Description: "Restore a rejected clip",
	}, t.keepClip)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameEditTranscript,
		Description: "Replace a clip's transcript text",
	}, t.editTranscript)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameAddText,
		Description: "Add a text overlay to the timeline",
	}, t.addText)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        command.NameUndo,
		Description: "Undo the last edit",
	}, t.undo)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_timeline",
		Description: "Describe the loaded project: clips in timeline order, shorts and playback position",
	}, t.getTimeline)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "seek",
		Description: "Move the playhead to a timeline time or to the start of a clip",
	}, t.seek)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "enter_short",
		Description: "Open one of the project's viral shorts as the working timeline",
	}, t.enterShort)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "exit_short",
		Description: "Close the open short and return to the full project",
	}, t.exitShort)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_command",
		Description: "Run gravity_ai tool-call statements exactly as the chat assistant would",
	}, t.runCommand)
}

func (t *tools) splitClip(ctx context.Context, req *sdkmcp.CallToolRequest, in splitClipInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.SplitClip{ClipID: in.ClipID, Time: in.Time})
}

func (t *tools) removeSegment(ctx context.Context, req *sdkmcp.CallToolRequest, in removeSegmentInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.RemoveSegment{ClipID: in.ClipID, Start: in.Start, End: in.End})
}

func (t *tools) removeWord(ctx context.Context, req *sdkmcp.CallToolRequest, in removeWordInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.RemoveWord{ClipID: in.ClipID, Word: in.Word})
}

func (t *tools) cutClip(ctx context.Context, req *sdkmcp.CallToolRequest, in clipInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.CutClip{ClipID: in.ClipID})
}

func (t *tools) keepClip(ctx context.Context, req *sdkmcp.CallToolRequest, in clipInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.KeepClip{ClipID: in.ClipID})
}

func (t *tools) editTranscript(ctx context.Context, req *sdkmcp.CallToolRequest, in editTranscriptInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.EditTranscript{ClipID: in.ClipID, Text: in.Text})
}

func (t *tools) addText(ctx context.Context, req *sdkmcp.CallToolRequest, in addTextInput) (*sdkmcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Content) == "" {
		return errorResult(fmt.Errorf("%w: content is required", edl.ErrInvalidArgument)), nil, nil
	}
	cmd := command.AddText{Content: in.Content, Start: in.Start, Duration: in.Duration, Style: in.Style}
	if cmd.Duration <= 0 {
		cmd.Duration = command.DefaultTextDuration
	}
	if cmd.Style == "" {
		cmd.Style = command.DefaultTextStyle
	}
	return t.run(cmd)
}

func (t *tools) undo(ctx context.Context, req *sdkmcp.CallToolRequest, in emptyInput) (*sdkmcp.CallToolResult, any, error) {
	return t.run(command.Undo{})
}

func (t *tools) runCommand(ctx context.Context, req *sdkmcp.CallToolRequest, in runCommandInput) (*sdkmcp.CallToolResult, any, error) {
	rep, err := t.session.Execute(t.executor, in.Text)
	if err != nil {
		return errorResult(err), nil, nil
	}
	if rep.Unrecognized {
		return errorResult(errors.New("no gravity_ai statement found in text")), nil, nil
	}
	return reportResult(rep), nil, nil
}

func (t *tools) run(cmd command.Command) (*sdkmcp.CallToolResult, any, error) {
	rep, err := t.session.Run(t.executor, cmd)
	if err != nil {
		return errorResult(err), nil, nil
	}
	t.logger.Debug("mcp edit", "command", cmd.Name(), "committed", rep.Committed, "undone", rep.Undone)
	return reportResult(rep), nil, nil
}

func (t *tools) getTimeline(ctx context.Context, req *sdkmcp.CallToolRequest, in emptyInput) (*sdkmcp.CallToolResult, any, error) {
	p := t.session.Snapshot()
	if p == nil {
		return errorResult(session.ErrNoProject), nil, nil
	}

	view := timelineView{
		Name:        p.Name,
		Version:     t.session.Version(),
		ActiveShort: t.session.ActiveShort(),
		CanUndo:     t.session.CanUndo(),
		Duration:    p.TotalDuration(),
		Clips:       make([]clipView, len(p.EDL)),
		Overlays:    len(p.Overlays),
		Shorts:      make([]string, len(p.ViralShorts)),
	}
	for i, c := range p.EDL {
		view.Clips[i] = clipView{ID: c.ID, Source: c.Source, Start: c.Start, End: c.End, Keep: c.Keep, Text: c.Text, Words: len(c.Words)}
	}
	for i, s := range p.ViralShorts {
		view.Shorts[i] = s.Title
	}
	if t.engine != nil {
		f := t.engine.State()
		view.Playback = &playbackView{Time: f.Time, State: string(f.State), ClipID: f.ClipID}
	}
	return jsonResult(view)
}

func (t *tools) seek(ctx context.Context, req *sdkmcp.CallToolRequest, in seekInput) (*sdkmcp.CallToolResult, any, error) {
	if t.engine == nil {
		return errorResult(errNoPlayback), nil, nil
	}

	var f playback.Frame
	switch {
	case in.ClipID != "":
		var err error
		if f, err = t.engine.SeekToClip(in.ClipID); err != nil {
			return errorResult(fmt.Errorf("%w: %s", err, in.ClipID)), nil, nil
		}
	case in.Time != nil:
		f = t.engine.Seek(*in.Time)
	default:
		return errorResult(fmt.Errorf("%w: time or clip_id is required", edl.ErrInvalidArgument)), nil, nil
	}
	return textResult(fmt.Sprintf("Playhead at %.2fs of %.2fs", f.Time, f.Total)), nil, nil
}

func (t *tools) enterShort(ctx context.Context, req *sdkmcp.CallToolRequest, in shortInput) (*sdkmcp.CallToolResult, any, error) {
	res, err := t.session.EnterShort(in.Index)
	if err != nil {
		return errorResult(err), nil, nil
	}
	msg := fmt.Sprintf("Editing short %q with %d clips", res.Title, len(res.Resolved))
	if res.Partial() {
		msg += fmt.Sprintf("; missing clips: %s", strings.Join(res.Missing, ", "))
	}
	return textResult(msg), nil, nil
}

func (t *tools) exitShort(ctx context.Context, req *sdkmcp.CallToolRequest, in emptyInput) (*sdkmcp.CallToolResult, any, error) {
	if err := t.session.ExitShort(); err != nil {
		return errorResult(err), nil, nil
	}
	return textResult("Back to the full project"), nil, nil
}

// reportResult flags the result as an error only when nothing was applied.
func reportResult(rep command.Report) *sdkmcp.CallToolResult {
	res := textResult(strings.Join(rep.Messages(), "\n"))
	if !rep.Committed && !rep.Undone && rep.Err() != nil {
		res.IsError = true
	}
	return res
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}}}
}

func errorResult(err error) *sdkmcp.CallToolResult {
	res := textResult(err.Error())
	res.IsError = true
	return res
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(data)), nil, nil
}
