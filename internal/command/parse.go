package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnrecognized    = errors.New("no recognized command")
	ErrMissingArgument = errors.New("missing argument")
	ErrBadArgument     = errors.New("bad argument")
	ErrUnterminated    = errors.New("unterminated statement")
)

const (
	toolFence = "```tool_code"
	fence     = "```"
)

// Invalid is a statement that named a known command but could not be parsed.
type Invalid struct {
	Statement string
	Err       error
}

// Parsed is the result of scanning an assistant reply.
type Parsed struct {
	Commands []Command
	Invalid  []Invalid
}

// Recognized reports whether any known command was found. A command name
// whose argument list never closes does not count, since prose often
// mentions a command without calling it.
func (p Parsed) Recognized() bool {
	if len(p.Commands) > 0 {
		return true
	}
	for _, inv := range p.Invalid {
		if !errors.Is(inv.Err, ErrUnterminated) {
			return true
		}
	}
	return false
}

// signatures lists the argument names of each command in positional order.
var signatures = map[string][]string{
	NameEditTranscript: {"clip_id", "new_transcript"},
	NameCutClip:        {"clip_id"},
	NameKeepClip:       {"clip_id"},
	NameAddText:        {"content", "start_time", "duration", "style"},
	NameSplitClip:      {"clip_id", "time"},
	NameRemoveSegment:  {"clip_id", "start", "end"},
	NameRemoveWord:     {"clip_id", "word"},
	NameUndo:           {},
}

// Parse scans text for tool-call statements. When the text holds ```tool_code
// fences only their bodies are scanned. Statements may carry a "gravity_ai."
// prefix and take keyword or positional arguments.
func Parse(text string) Parsed {
	if !strings.Contains(text, toolFence) {
		return scan([]string{text})
	}
	return scan(codeBlocks(text))
}

// ParseReply scans an assistant chat reply. Only ```tool_code fences are
// read; a reply without one carries no commands.
func ParseReply(text string) Parsed {
	return scan(codeBlocks(text))
}

func scan(blocks []string) Parsed {
	var out Parsed
	for _, block := range blocks {
		scanBlock(block, &out)
	}
	return out
}

// ParseOne parses text that must contain exactly one valid statement.
func ParseOne(text string) (Command, error) {
	p := Parse(text)
	switch {
	case len(p.Invalid) > 0:
		return nil, fmt.Errorf("%s: %w", p.Invalid[0].Statement, p.Invalid[0].Err)
	case len(p.Commands) == 0:
		return nil, ErrUnrecognized
	case len(p.Commands) > 1:
		return nil, fmt.Errorf("%w: expected one statement, got %d", ErrBadArgument, len(p.Commands))
	}
	return p.Commands[0], nil
}

func codeBlocks(text string) []string {
	var blocks []string
	rest := text
	for {
		_, after, ok := strings.Cut(rest, toolFence)
		if !ok {
			break
		}
		body, tail, _ := strings.Cut(after, fence)
		blocks = append(blocks, body)
		rest = tail
	}
	return blocks
}

func scanBlock(block string, out *Parsed) {
	i := 0
	for i < len(block) {
		name, start, ok := nextCall(block, i)
		if !ok {
			return
		}
		args, end, err := splitArgs(block, start)
		stmt := strings.TrimSpace(block[start-len(name)-1 : min(end+1, len(block))])
		if err != nil {
			out.Invalid = append(out.Invalid, Invalid{Statement: stmt, Err: err})
			return
		}
		cmd, err := build(name, args)
		if err != nil {
			out.Invalid = append(out.Invalid, Invalid{Statement: stmt, Err: err})
		} else {
			out.Commands = append(out.Commands, cmd)
		}
		i = end + 1
	}
}

// nextCall finds the next "name(" for a known command at or after i and
// returns the name and the index just past the open paren. A qualifier such
// as "gravity_ai." is allowed since '.' does not continue an identifier.
func nextCall(s string, i int) (string, int, bool) {
	best, bestAt := "", -1
	for name := range signatures {
		from := i
		for {
			at := strings.Index(s[from:], name+"(")
			if at < 0 {
				break
			}
			at += from
			if at == 0 || !isIdent(s[at-1]) {
				if bestAt < 0 || at < bestAt {
					best, bestAt = name, at
				}
				break
			}
			from = at + 1
		}
	}
	if bestAt < 0 {
		return "", 0, false
	}
	return best, bestAt + len(best) + 1, true
}

func isIdent(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

type arg struct {
	key   string
	value string
}

// splitArgs reads a comma separated argument list from s[i:] up to the
// closing paren, honoring quoted strings. It returns the index of the paren.
func splitArgs(s string, i int) ([]arg, int, error) {
	var (
		args  []arg
		cur   strings.Builder
		key   string
		quote byte
		seen  bool
	)
	flush := func() {
		v := strings.TrimSpace(cur.String())
		if v != "" || key != "" || seen {
			args = append(args, arg{key: key, value: v})
		}
		cur.Reset()
		key, seen = "", false
	}

	for j := i; j < len(s); j++ {
		c := s[j]
		if quote != 0 {
			switch {
			case c == '\\' && j+1 < len(s):
				j++
				cur.WriteByte(unescape(s[j]))
			case c == quote:
				quote = 0
			default:
				cur.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
			seen = true
		case '=':
			if key == "" && !seen {
				key = strings.TrimSpace(cur.String())
				cur.Reset()
			} else {
				cur.WriteByte(c)
			}
		case ',':
			flush()
		case ')':
			flush()
			return args, j, nil
		default:
			cur.WriteByte(c)
		}
	}
	return nil, len(s), ErrUnterminated
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	}
	return c
}

// bind maps positional and keyword arguments onto the command signature.
func bind(name string, args []arg) (map[string]string, error) {
	sig := signatures[name]
	vals := make(map[string]string, len(args))
	for i, a := range args {
		k := a.key
		if k == "" {
			if i >= len(sig) {
				return nil, fmt.Errorf("%w: too many arguments to %s", ErrBadArgument, name)
			}
			k = sig[i]
		}
		vals[k] = a.value
	}
	return vals, nil
}

func build(name string, args []arg) (Command, error) {
	v, err := bind(name, args)
	if err != nil {
		return nil, err
	}
	switch name {
	case NameEditTranscript:
		id, err := required(v, "clip_id")
		if err != nil {
			return nil, err
		}
		text, ok := v["new_transcript"]
		if !ok {
			return nil, fmt.Errorf("%w: new_transcript", ErrMissingArgument)
		}
		return EditTranscript{ClipID: id, Text: text}, nil
	case NameCutClip, NameKeepClip:
		id, err := required(v, "clip_id")
		if err != nil {
			return nil, err
		}
		if name == NameCutClip {
			return CutClip{ClipID: id}, nil
		}
		return KeepClip{ClipID: id}, nil
	case NameAddText:
		content, err := required(v, "content")
		if err != nil {
			return nil, err
		}
		start, err := number(v, "start_time", 0)
		if err != nil {
			return nil, err
		}
		dur, err := number(v, "duration", DefaultTextDuration)
		if err != nil {
			return nil, err
		}
		style := v["style"]
		if style == "" {
			style = DefaultTextStyle
		}
		return AddText{Content: content, Start: start, Duration: dur, Style: style}, nil
	case NameSplitClip:
		id, err := required(v, "clip_id")
		if err != nil {
			return nil, err
		}
		at, err := requiredNumber(v, "time")
		if err != nil {
			return nil, err
		}
		return SplitClip{ClipID: id, Time: at}, nil
	case NameRemoveSegment:
		id, err := required(v, "clip_id")
		if err != nil {
			return nil, err
		}
		start, err := requiredNumber(v, "start")
		if err != nil {
			return nil, err
		}
		end, err := requiredNumber(v, "end")
		if err != nil {
			return nil, err
		}
		return RemoveSegment{ClipID: id, Start: start, End: end}, nil
	case NameRemoveWord:
		id, err := required(v, "clip_id")
		if err != nil {
			return nil, err
		}
		word, err := required(v, "word")
		if err != nil {
			return nil, err
		}
		return RemoveWord{ClipID: id, Word: word}, nil
	case NameUndo:
		return Undo{}, nil
	}
	return nil, ErrUnrecognized
}

func required(v map[string]string, key string) (string, error) {
	s := strings.TrimSpace(v[key])
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return s, nil
}

func requiredNumber(v map[string]string, key string) (float64, error) {
	if _, ok := v[key]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return number(v, key, 0)
}

func number(v map[string]string, key string, fallback float64) (float64, error) {
	s, ok := v[key]
	if !ok || strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrBadArgument, key, s)
	}
	return f, nil
}
