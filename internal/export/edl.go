package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

const DefaultFrameRate = 30.0

// Events lists the kept clips of p in timeline order.
func Events(p *edl.Project) []Event {
	events := make([]Event, 0, len(p.EDL))
	for _, c := range p.EDL {
		if !c.Keep || c.Duration() <= 0 {
			continue
		}
		events = append(events, Event{
			ClipName:  c.ID,
			MediaPath: c.Source,
			Start:     c.Start,
			End:       c.End,
		})
	}
	return events
}

// GenerateEDL renders events as a CMX3600 edit list. Record timecodes
// accumulate so the events butt against each other.
func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame(frameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0.0
	for i, ev := range events {
		dur := ev.End - ev.Start
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				timecode(ev.Start, fps), timecode(ev.End, fps),
				timecode(record, fps), timecode(record+dur, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath),
		)
		record += dur
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL writes the project's EDL into dir as "<name>.edl".
func WriteEDL(p *edl.Project, dir string, frameRate float64) (EDLResult, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return EDLResult{}, err
	}
	name := SanitizeName(p.Name, 120)
	if name == "" {
		name = "timeline"
	}

	events := Events(p)
	content := GenerateEDL(events, p.Name, frameRate)
	path := filepath.Join(dir, name+".edl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return EDLResult{}, fmt.Errorf("write edl: %w", err)
	}
	return EDLResult{Status: "ok", Format: "cmx3600", OutputPath: path, EventCount: len(events)}, nil
}

func isDropFrame(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

func timecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(math.Max(0, seconds) * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
