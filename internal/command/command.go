// Package command turns tool-call statements in assistant replies into typed
// edit commands and applies them to a project.
package command

// Command is one recognized tool call. The concrete types below are the only
// implementations.
type Command interface {
	Name() string
	command()
}

const (
	NameEditTranscript = "edit_transcript"
	NameCutClip        = "cut_clip"
	NameKeepClip       = "keep_clip"
	NameAddText        = "add_text"
	NameSplitClip      = "split_clip"
	NameRemoveSegment  = "remove_segment"
	NameRemoveWord     = "remove_word"
	NameUndo           = "undo_action"
)

// Defaults for add_text when the statement leaves them out.
const (
	DefaultTextDuration = 3.0
	DefaultTextStyle    = "pop"
)

type EditTranscript struct {
	ClipID string
	Text   string
}

type CutClip struct {
	ClipID string
}

type KeepClip struct {
	ClipID string
}

type AddText struct {
	Content  string
	Start    float64
	Duration float64
	Style    string
}

// SplitClip cuts a clip at a source-absolute time.
type SplitClip struct {
	ClipID string
	Time   float64
}

// RemoveSegment soft-deletes a source-absolute range of a clip.
type RemoveSegment struct {
	ClipID string
	Start  float64
	End    float64
}

type RemoveWord struct {
	ClipID string
	Word   string
}

type Undo struct{}

func (EditTranscript) Name() string { return NameEditTranscript }
func (CutClip) Name() string        { return NameCutClip }
func (KeepClip) Name() string       { return NameKeepClip }
func (AddText) Name() string        { return NameAddText }
func (SplitClip) Name() string      { return NameSplitClip }
func (RemoveSegment) Name() string  { return NameRemoveSegment }
func (RemoveWord) Name() string     { return NameRemoveWord }
func (Undo) Name() string           { return NameUndo }

func (EditTranscript) command() {}
func (CutClip) command()        {}
func (KeepClip) command()       {}
func (AddText) command()        {}
func (SplitClip) command()      {}
func (RemoveSegment) command()  {}
func (RemoveWord) command()     {}
func (Undo) command()           {}
