package edl

import (
	"fmt"
)

func (p *Project) SetKeep(clipID string, keep bool) error {
	c, err := p.Clip(clipID)
	if err != nil {
		return err
	}
	c.Keep = keep
	return nil
}

// SetText replaces the clip's transcript text. Word timings are left alone.
func (p *Project) SetText(clipID, text string) error {
	c, err := p.Clip(clipID)
	if err != nil {
		return err
	}
	c.Text = text
	return nil
}

func (p *Project) SetColorGrading(clipID string, g ColorGrading) error {
	c, err := p.Clip(clipID)
	if err != nil {
		return err
	}
	c.ColorGrading = &g
	return nil
}

// ApplyGradingToAll copies g onto every clip and the global settings.
func (p *Project) ApplyGradingToAll(g ColorGrading) {
	for i := range p.EDL {
		cp := g
		p.EDL[i].ColorGrading = &cp
	}
	global := g
	p.GlobalSettings.ColorGrading = &global
}

// Trim moves the source window of a clip. The result must keep a positive length.
func (p *Project) Trim(clipID string, start, end float64) error {
	c, err := p.Clip(clipID)
	if err != nil {
		return err
	}
	if start < 0 || end-start < SplitGuard {
		return fmt.Errorf("%w: trim %.3f-%.3f on clip %s", ErrFragmentTooShort, start, end, clipID)
	}
	c.Start = start
	c.End = end
	return nil
}

func (p *Project) DeleteClip(clipID string) error {
	idx := p.ClipIndex(clipID)
	if idx < 0 {
		return clipNotFound(clipID)
	}
	p.replaceClip(idx)
	return nil
}

// Reorder replaces the EDL order with ids, which must name exactly the
// current clips, each once.
func (p *Project) Reorder(ids []string) error {
	if len(ids) != len(p.EDL) {
		return fmt.Errorf("%w: got %d ids for %d clips", ErrReorderMismatch, len(ids), len(p.EDL))
	}
	byID := make(map[string]Clip, len(p.EDL))
	for _, c := range p.EDL {
		byID[c.ID] = c
	}
	out := make([]Clip, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown clip %s", ErrReorderMismatch, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: clip %s listed twice", ErrReorderMismatch, id)
		}
		seen[id] = true
		out = append(out, c)
	}
	p.EDL = out
	return nil
}

// MoveClip moves one clip to position to, shifting the others.
func (p *Project) MoveClip(clipID string, to int) error {
	from := p.ClipIndex(clipID)
	if from < 0 {
		return clipNotFound(clipID)
	}
	if to < 0 || to >= len(p.EDL) {
		return fmt.Errorf("%w: position %d out of range", ErrInvalidArgument, to)
	}
	ids := make([]string, 0, len(p.EDL))
	for i, c := range p.EDL {
		if i != from {
			ids = append(ids, c.ID)
		}
	}
	ids = append(ids[:to], append([]string{clipID}, ids[to:]...)...)
	return p.Reorder(ids)
}
