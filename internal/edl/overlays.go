package edl

import (
	"fmt"
)

// OverlayPatch carries the optional fields of an overlay update.
type OverlayPatch struct {
	Content    *string  `json:"content,omitempty"`
	Start      *float64 `json:"start,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Style      *string  `json:"style,omitempty"`
	PositionX  *float64 `json:"positionX,omitempty"`
	PositionY  *float64 `json:"positionY,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	TextColor  *string  `json:"textColor,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
}

var validStyles = map[string]bool{
	StylePop:        true,
	StyleSlideUp:    true,
	StyleFade:       true,
	StyleTypewriter: true,
}

// ValidStyle reports whether s names a supported overlay animation.
func ValidStyle(s string) bool {
	return validStyles[s]
}

// AddOverlay validates o, assigns an id when missing and appends it.
func (p *Project) AddOverlay(o TextOverlay) (TextOverlay, error) {
	if o.Content == "" {
		return TextOverlay{}, fmt.Errorf("%w: overlay content is empty", ErrInvalidArgument)
	}
	if o.Duration <= 0 {
		o.Duration = DefaultOverlayLength
	}
	if o.Style == "" {
		o.Style = DefaultOverlayStyle
	}
	if o.Origin == "" {
		o.Origin = OriginManual
	}
	if o.ID == "" {
		if o.Origin == OriginAI {
			o.ID = NewID("ai-text")
		} else {
			o.ID = NewID("text")
		}
	}
	if err := checkOverlay(o); err != nil {
		return TextOverlay{}, err
	}
	p.Overlays = append(p.Overlays, o)
	return o, nil
}

func (p *Project) UpdateOverlay(id string, patch OverlayPatch) error {
	idx := p.overlayIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrOverlayNotFound, id)
	}
	o := p.Overlays[idx].clone()
	if patch.Content != nil {
		o.Content = *patch.Content
	}
	if patch.Start != nil {
		o.Start = *patch.Start
	}
	if patch.Duration != nil {
		o.Duration = *patch.Duration
	}
	if patch.Style != nil {
		o.Style = *patch.Style
	}
	if patch.PositionX != nil {
		x := *patch.PositionX
		o.PositionX = &x
	}
	if patch.PositionY != nil {
		y := *patch.PositionY
		o.PositionY = &y
	}
	if patch.FontSize != nil {
		o.FontSize = *patch.FontSize
	}
	if patch.TextColor != nil {
		o.TextColor = *patch.TextColor
	}
	if patch.FontFamily != nil {
		o.FontFamily = *patch.FontFamily
	}
	if err := checkOverlay(o); err != nil {
		return err
	}
	p.Overlays[idx] = o
	return nil
}

func (p *Project) RemoveOverlay(id string) error {
	idx := p.overlayIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrOverlayNotFound, id)
	}
	out := make([]TextOverlay, 0, len(p.Overlays)-1)
	out = append(out, p.Overlays[:idx]...)
	p.Overlays = append(out, p.Overlays[idx+1:]...)
	return nil
}

func (p *Project) overlayIndex(id string) int {
	for i := range p.Overlays {
		if p.Overlays[i].ID == id {
			return i
		}
	}
	return -1
}

func checkOverlay(o TextOverlay) error {
	if o.Start < 0 || o.Duration <= 0 {
		return fmt.Errorf("%w: overlay %s timing %.3f+%.3f", ErrInvalidArgument, o.ID, o.Start, o.Duration)
	}
	if !validStyles[o.Style] {
		return fmt.Errorf("%w: overlay style %q", ErrInvalidArgument, o.Style)
	}
	if o.Origin != OriginManual && o.Origin != OriginAI {
		return fmt.Errorf("%w: overlay origin %q", ErrInvalidArgument, o.Origin)
	}
	for _, v := range []*float64{o.PositionX, o.PositionY} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: overlay position must be within [0,1]", ErrInvalidArgument)
		}
	}
	return nil
}
