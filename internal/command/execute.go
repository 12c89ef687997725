package command

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// ErrUndoUnavailable is reported when undo_action is requested without an
// undo handler or with an empty history.
var ErrUndoUnavailable = errors.New("undo is not available")

// UndoFunc restores the previous committed project state.
type UndoFunc func() error

// Outcome is the result of one command within an invocation. Skipped
// commands were never applied because the invocation also asked for undo.
type Outcome struct {
	Command Command
	Message string
	Err     error
	Skipped bool
}

func (o Outcome) OK() bool {
	return o.Err == nil && !o.Skipped
}

// Report describes an invocation. Project is the new state when Committed.
type Report struct {
	Outcomes     []Outcome
	Invalid      []Invalid
	Unrecognized bool
	Raw          string
	Committed    bool
	Undone       bool
	Project      *edl.Project
}

// Messages returns the user-facing lines for the invocation. An unrecognized
// reply is surfaced verbatim.
func (r Report) Messages() []string {
	if r.Unrecognized {
		return []string{r.Raw}
	}
	var out []string
	for _, o := range r.Outcomes {
		out = append(out, o.Message)
	}
	for _, inv := range r.Invalid {
		out = append(out, fmt.Sprintf("Could not run %s: %v", inv.Statement, inv.Err))
	}
	return out
}

// Err returns the first command failure, if any.
func (r Report) Err() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	if len(r.Invalid) > 0 {
		return r.Invalid[0].Err
	}
	return nil
}

type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute parses text and applies every recognized command to one working
// copy of p. Each command is all-or-nothing; a failing command leaves the
// working copy as it was. The working copy is committed once, and only when
// at least one command succeeded. An invocation that asks for undo runs the
// undo handler instead and applies nothing else. p is never modified.
func (e *Executor) Execute(p *edl.Project, text string, undo UndoFunc) Report {
	return e.execute(p, text, Parse(text), undo)
}

// ExecuteReply is Execute for an assistant chat reply: only statements
// inside ```tool_code fences run, and any other reply is surfaced verbatim.
func (e *Executor) ExecuteReply(p *edl.Project, reply string, undo UndoFunc) Report {
	return e.execute(p, reply, ParseReply(reply), undo)
}

func (e *Executor) execute(p *edl.Project, text string, parsed Parsed, undo UndoFunc) Report {
	if !parsed.Recognized() {
		return Report{Unrecognized: true, Raw: text}
	}
	return e.Run(p, parsed.Commands, parsed.Invalid, undo)
}

// Run applies already-parsed commands with the same semantics as Execute.
func (e *Executor) Run(p *edl.Project, cmds []Command, invalid []Invalid, undo UndoFunc) Report {
	rep := Report{Invalid: invalid}
	if hasUndo(cmds) {
		return e.runUndo(rep, cmds, undo)
	}

	working := p.Clone()
	changed := false
	for _, cmd := range cmds {
		trial := working.Clone()
		msg, err := apply(trial, cmd)
		if err != nil {
			msg = failureMessage(working, cmd, err)
			e.logger.Debug("command failed", "command", cmd.Name(), "kind", edl.KindOf(err), "error", err)
		} else {
			working = trial
			changed = true
		}
		rep.Outcomes = append(rep.Outcomes, Outcome{Command: cmd, Message: msg, Err: err})
	}

	if changed {
		rep.Committed = true
		rep.Project = working
	}
	return rep
}

func hasUndo(cmds []Command) bool {
	for _, cmd := range cmds {
		if _, ok := cmd.(Undo); ok {
			return true
		}
	}
	return false
}

// runUndo handles an invocation that asks for undo. Undo restores committed
// history, so edits in the same invocation are reported as skipped.
func (e *Executor) runUndo(rep Report, cmds []Command, undo UndoFunc) Report {
	for _, cmd := range cmds {
		if _, ok := cmd.(Undo); ok {
			continue
		}
		rep.Outcomes = append(rep.Outcomes, Outcome{
			Command: cmd,
			Message: fmt.Sprintf("Skipped %s (undo requested)", cmd.Name()),
			Skipped: true,
		})
	}

	out := Outcome{Command: Undo{}, Message: "Undoing last action..."}
	if undo == nil {
		out.Err = ErrUndoUnavailable
	} else if err := undo(); err != nil {
		out.Err = err
	}
	if out.Err != nil {
		out.Message = "Undo is not available"
		e.logger.Debug("undo failed", "error", out.Err)
	} else {
		rep.Undone = true
	}
	rep.Outcomes = append(rep.Outcomes, out)
	return rep
}

func apply(p *edl.Project, cmd Command) (string, error) {
	switch c := cmd.(type) {
	case EditTranscript:
		if err := p.SetText(c.ClipID, c.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated transcript for Clip %s", c.ClipID), nil
	case CutClip:
		if err := p.SetKeep(c.ClipID, false); err != nil {
			return "", err
		}
		return fmt.Sprintf("Cut Clip %s (Rejected)", c.ClipID), nil
	case KeepClip:
		if err := p.SetKeep(c.ClipID, true); err != nil {
			return "", err
		}
		return fmt.Sprintf("Restored Clip %s (Kept)", c.ClipID), nil
	case AddText:
		style := c.Style
		if !edl.ValidStyle(style) {
			style = DefaultTextStyle
		}
		o, err := p.AddOverlay(edl.TextOverlay{
			Content:  c.Content,
			Start:    c.Start,
			Duration: c.Duration,
			Style:    style,
			Origin:   edl.OriginAI,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added text %q at %ss", o.Content, secs(o.Start)), nil
	case SplitClip:
		if _, err := p.SplitAt(c.ClipID, c.Time); err != nil {
			return "", err
		}
		return fmt.Sprintf("Split Clip %s at %ss", c.ClipID, secs(c.Time)), nil
	case RemoveSegment:
		if _, err := p.RemoveSegment(c.ClipID, c.Start, c.End); err != nil {
			return "", err
		}
		return fmt.Sprintf("Surgically removed segment %ss - %ss", secs(c.Start), secs(c.End)), nil
	case RemoveWord:
		w, _, err := p.RemoveWord(c.ClipID, c.Word)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Found %q at %ss and removed it", w.Word, secs(w.Start)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnrecognized, cmd.Name())
}

func failureMessage(p *edl.Project, cmd Command, err error) string {
	id := clipID(cmd)
	switch c := cmd.(type) {
	case SplitClip:
		if errors.Is(err, edl.ErrSplitOutOfRange) {
			return fmt.Sprintf("Split point %ss is invalid (too close to edge)", secs(c.Time))
		}
	case RemoveSegment:
		if clip, cerr := p.Clip(c.ClipID); cerr == nil && errors.Is(err, edl.ErrCutOutOfBounds) {
			return fmt.Sprintf("Cut range %s-%s is outside clip bounds (%s-%s)",
				secs(c.Start), secs(c.End), secs(clip.Start), secs(clip.End))
		}
	case RemoveWord:
		if errors.Is(err, edl.ErrWordNotFound) {
			return fmt.Sprintf("Could not find word %q in Clip %s", c.Word, id)
		}
	}
	switch {
	case errors.Is(err, edl.ErrClipNotFound):
		return fmt.Sprintf("Clip %s not found", id)
	case errors.Is(err, edl.ErrNoTranscript):
		return fmt.Sprintf("No detailed word data available for Clip %s", id)
	}
	return fmt.Sprintf("%s failed: %v", cmd.Name(), err)
}

func clipID(cmd Command) string {
	switch c := cmd.(type) {
	case EditTranscript:
		return c.ClipID
	case CutClip:
		return c.ClipID
	case KeepClip:
		return c.ClipID
	case SplitClip:
		return c.ClipID
	case RemoveSegment:
		return c.ClipID
	case RemoveWord:
		return c.ClipID
	}
	return ""
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
