package edl

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	defaultProjectName = "Untitled Project"
	defaultFilter      = "Natural Grade"
	defaultSource      = "Unknown Source"
	defaultReason      = "No reason provided"
	defaultShortTitle  = "Untitled Short"
	defaultShortDesc   = "No description"
)

type xmlProject struct {
	XMLName        xml.Name         `xml:"project"`
	Name           string           `xml:"name,attr"`
	GlobalSettings *xmlGlobal       `xml:"global_settings"`
	Filter         string           `xml:"filter_suggestion"`
	ColorGrading   *xmlColorGrading `xml:"color_grading"`
	Clips          []xmlClip        `xml:"edl>clip"`
	Shorts         []xmlShort       `xml:"viral_shorts>short"`
	Overlays       []xmlText        `xml:"overlays>text"`
}

type xmlGlobal struct {
	FilterSuggestion string           `xml:"filter_suggestion"`
	ColorGrading     *xmlColorGrading `xml:"color_grading"`
}

type xmlColorGrading struct {
	Temperature    string `xml:"temperature"`
	Exposure       string `xml:"exposure"`
	Contrast       string `xml:"contrast"`
	Saturation     string `xml:"saturation"`
	FilterStrength string `xml:"filter_strength"`
}

type xmlClip struct {
	ID           string           `xml:"id,attr"`
	Source       string           `xml:"source,attr"`
	Keep         string           `xml:"keep,attr"`
	Reason       string           `xml:"reason,attr"`
	Start        string           `xml:"start,attr"`
	End          string           `xml:"end,attr"`
	Duration     string           `xml:"duration,attr"`
	Text         string           `xml:"text,attr"`
	ColorGrading *xmlColorGrading `xml:"color_grading"`
}

type xmlShort struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	ClipIDs     string `xml:"clip_ids"`
}

type xmlText struct {
	ID       string `xml:"id,attr"`
	Content  string `xml:"content,attr"`
	Start    string `xml:"start,attr"`
	Duration string `xml:"duration,attr"`
	Style    string `xml:"style,attr"`
	Origin   string `xml:"origin,attr"`
	Size     string `xml:"size,attr"`
	X        string `xml:"x,attr"`
	Y        string `xml:"y,attr"`
	Color    string `xml:"color,attr"`
	Font     string `xml:"font,attr"`
}

// ParseAnalysisXML decodes the EDL document produced by the analysis service.
func ParseAnalysisXML(r io.Reader) (*Project, error) {
	var doc xmlProject
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode analysis xml: %w", err)
	}

	p := NewProject(strings.TrimSpace(doc.Name))
	if p.Name == "" {
		p.Name = defaultProjectName
	}

	p.GlobalSettings.FilterSuggestion = defaultFilter
	if doc.GlobalSettings != nil && strings.TrimSpace(doc.GlobalSettings.FilterSuggestion) != "" {
		p.GlobalSettings.FilterSuggestion = strings.TrimSpace(doc.GlobalSettings.FilterSuggestion)
	} else if strings.TrimSpace(doc.Filter) != "" {
		p.GlobalSettings.FilterSuggestion = strings.TrimSpace(doc.Filter)
	}
	if doc.GlobalSettings != nil && doc.GlobalSettings.ColorGrading != nil {
		p.GlobalSettings.ColorGrading = doc.GlobalSettings.ColorGrading.grading()
	} else if doc.ColorGrading != nil {
		p.GlobalSettings.ColorGrading = doc.ColorGrading.grading()
	}

	seen := make(map[string]bool, len(doc.Clips))
	for i, xc := range doc.Clips {
		c := xc.clip(i)
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate clip id %q", ErrInvalidProject, c.ID)
		}
		seen[c.ID] = true
		p.EDL = append(p.EDL, c)
	}

	for _, s := range doc.Shorts {
		short := ViralShort{
			Title:       orDefault(s.Title, defaultShortTitle),
			Description: orDefault(s.Description, defaultShortDesc),
			ClipIDs:     []string{},
		}
		for _, id := range strings.Split(s.ClipIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				short.ClipIDs = append(short.ClipIDs, id)
			}
		}
		p.ViralShorts = append(p.ViralShorts, short)
	}

	for i, t := range doc.Overlays {
		p.Overlays = append(p.Overlays, t.overlay(i))
	}

	return p, nil
}

func (x xmlClip) clip(index int) Clip {
	c := Clip{
		ID:     strings.TrimSpace(x.ID),
		Source: orDefault(x.Source, defaultSource),
		Keep:   strings.EqualFold(strings.TrimSpace(x.Keep), "true"),
		Reason: orDefault(x.Reason, defaultReason),
		Start:  parseNumber(x.Start, 0),
		End:    parseNumber(x.End, 0),
		Text:   x.Text,
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("clip-%d", index+1)
	}
	if c.Start < 0 {
		c.Start = 0
	}
	fixClipBounds(&c, parseNumber(x.Duration, 0))
	if x.ColorGrading != nil {
		c.ColorGrading = x.ColorGrading.grading()
	}
	return c
}

// fixClipBounds derives End from a fallback length when the window is empty.
func fixClipBounds(c *Clip, fallback float64) {
	if c.End > c.Start {
		return
	}
	if fallback > 0 {
		c.End = c.Start + fallback
		return
	}
	c.End = c.Start + DefaultClipLength
}

func (x xmlText) overlay(index int) TextOverlay {
	o := TextOverlay{
		ID:         strings.TrimSpace(x.ID),
		Content:    x.Content,
		Start:      math.Max(parseNumber(x.Start, 0), 0),
		Duration:   parseNumber(x.Duration, DefaultOverlayLength),
		Style:      orDefault(x.Style, DefaultOverlayStyle),
		Origin:     orDefault(x.Origin, OriginManual),
		FontSize:   parseNumber(x.Size, 0),
		TextColor:  strings.TrimSpace(x.Color),
		FontFamily: strings.TrimSpace(x.Font),
	}
	if o.ID == "" {
		o.ID = fmt.Sprintf("text-%d", index+1)
	}
	if o.Duration <= 0 {
		o.Duration = DefaultOverlayLength
	}
	if !validStyles[o.Style] {
		o.Style = DefaultOverlayStyle
	}
	if o.Origin != OriginAI {
		o.Origin = OriginManual
	}
	o.PositionX = parsePosition(x.X)
	o.PositionY = parsePosition(x.Y)
	return o
}

// parsePosition accepts either a normalized value or a percentage.
func parsePosition(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	if v > 1 {
		v /= 100
	}
	v = Clamp01(v)
	return &v
}

func (g *xmlColorGrading) grading() *ColorGrading {
	return &ColorGrading{
		Temperature:    parseNumber(g.Temperature, DefaultTemperature),
		Exposure:       parseNumber(g.Exposure, 0),
		Contrast:       parseNumber(g.Contrast, 0),
		Saturation:     parseNumber(g.Saturation, DefaultSaturation),
		FilterStrength: parseNumber(g.FilterStrength, DefaultFilterStrength),
	}
}

// Metadata is the analysis JSON document keyed by clip id.
type Metadata struct {
	Timeline []MetadataEntry `json:"timeline"`
}

type MetadataEntry struct {
	ID          FlexID   `json:"id"`
	Start       *float64 `json:"start"`
	End         *float64 `json:"end"`
	Text        string   `json:"text"`
	Words       []Word   `json:"words"`
	SourceVideo string   `json:"source_video"`
}

// FlexID decodes ids that arrive as either JSON strings or numbers.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	*f = FlexID(raw)
	return nil
}

// MergeMetadata overlays precise timings and word-level transcripts from the
// analysis metadata onto matching clips. Unknown ids are ignored. It returns
// the number of clips updated.
func MergeMetadata(p *Project, r io.Reader) (int, error) {
	var meta Metadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode analysis metadata: %w", err)
	}

	updated := 0
	for _, entry := range meta.Timeline {
		idx := p.ClipIndex(string(entry.ID))
		if idx < 0 {
			continue
		}
		c := &p.EDL[idx]
		length := c.Duration()
		if entry.Start != nil {
			c.Start = math.Max(*entry.Start, 0)
		}
		if entry.End != nil {
			c.End = *entry.End
		}
		fixClipBounds(c, length)
		if entry.Text != "" {
			c.Text = entry.Text
		}
		if len(entry.Words) > 0 {
			c.Words = append([]Word{}, entry.Words...)
		}
		if entry.SourceVideo != "" && c.Source == defaultSource {
			c.Source = entry.SourceVideo
		}
		updated++
	}
	return updated, nil
}

func parseNumber(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
