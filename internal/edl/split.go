package edl

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

const (
	// SplitGuard is the minimum distance between a split point and either clip edge.
	SplitGuard = 0.1
	// FragmentEpsilon is the shortest fragment a segment removal will create.
	FragmentEpsilon = 0.02
	// RemovedSegmentReason marks the soft-deleted fragment of a segment removal.
	RemovedSegmentReason = "Removed Segment"

	boundsTolerance = 1e-9
)

// Split replaces the clip with two fragments at offset seconds into it. The
// left fragment keeps the original id; the right fragment gets a fresh
// "{id}_split_{rand}" id. It returns the right fragment's id.
func (p *Project) Split(clipID string, offset float64) (string, error) {
	idx := p.ClipIndex(clipID)
	if idx < 0 {
		return "", clipNotFound(clipID)
	}
	orig := p.EDL[idx]
	dur := orig.Duration()
	if math.IsNaN(offset) || offset < SplitGuard || offset > dur-SplitGuard {
		return "", fmt.Errorf("%w: offset %.3fs in clip %s of %.3fs", ErrSplitOutOfRange, offset, clipID, dur)
	}

	at := orig.Start + offset
	left := orig.clone()
	left.End = at
	right := orig.clone()
	right.ID = derivedID(orig.ID, "split")
	right.Start = at
	left.Words, right.Words = partitionWords(orig.Words, at)

	p.replaceClip(idx, left, right)
	return right.ID, nil
}

// SplitAt splits the clip at a source-absolute time.
func (p *Project) SplitAt(clipID string, sourceTime float64) (string, error) {
	c, err := p.Clip(clipID)
	if err != nil {
		return "", err
	}
	return p.Split(clipID, sourceTime-c.Start)
}

// RemoveSegment soft-deletes [cutStart, cutEnd] (source-absolute) from a clip.
// The clip is replaced in place by up to three fragments: a kept "pre"
// fragment, the rejected "cut" fragment and a kept "post" fragment. Pre and
// post fragments shorter than FragmentEpsilon are dropped.
func (p *Project) RemoveSegment(clipID string, cutStart, cutEnd float64) ([]string, error) {
	idx := p.ClipIndex(clipID)
	if idx < 0 {
		return nil, clipNotFound(clipID)
	}
	orig := p.EDL[idx]

	if cutStart < orig.Start-boundsTolerance || cutEnd > orig.End+boundsTolerance || cutEnd <= cutStart {
		return nil, fmt.Errorf("%w: cut range %.3f-%.3f is outside clip bounds (%.3f-%.3f)",
			ErrCutOutOfBounds, cutStart, cutEnd, orig.Start, orig.End)
	}
	cutStart = math.Max(cutStart, orig.Start)
	cutEnd = math.Min(cutEnd, orig.End)

	var fragments []Clip
	before, rest := partitionWords(orig.Words, cutStart)
	inside, after := partitionWords(rest, cutEnd)

	if cutStart-orig.Start > FragmentEpsilon {
		pre := orig.clone()
		pre.ID = derivedID(orig.ID, "pre")
		pre.End = cutStart
		pre.Words = before
		fragments = append(fragments, pre)
	}

	cut := orig.clone()
	cut.ID = derivedID(orig.ID, "cut")
	cut.Start = cutStart
	cut.End = cutEnd
	cut.Keep = false
	cut.Reason = RemovedSegmentReason
	cut.Words = inside
	fragments = append(fragments, cut)

	if orig.End-cutEnd > FragmentEpsilon {
		post := orig.clone()
		post.ID = derivedID(orig.ID, "post")
		post.Start = cutEnd
		post.Words = after
		fragments = append(fragments, post)
	}

	p.replaceClip(idx, fragments...)

	ids := make([]string, len(fragments))
	for i, f := range fragments {
		ids[i] = f.ID
	}
	return ids, nil
}

// RemoveWord finds the first transcript word matching target and removes its
// time span with RemoveSegment. A clip without word timings reports
// ErrNoTranscript rather than ErrWordNotFound.
func (p *Project) RemoveWord(clipID, target string) (Word, []string, error) {
	c, err := p.Clip(clipID)
	if err != nil {
		return Word{}, nil, err
	}
	if len(c.Words) == 0 {
		return Word{}, nil, fmt.Errorf("%w for clip %s", ErrNoTranscript, clipID)
	}

	w, ok := FindWord(c.Words, target)
	if !ok {
		return Word{}, nil, fmt.Errorf("%w: %q in clip %s", ErrWordNotFound, target, clipID)
	}

	ids, err := p.RemoveSegment(clipID, w.Start, w.End)
	if err != nil {
		return Word{}, nil, err
	}
	return w, ids, nil
}

// FindWord returns the first word whose normalized text equals or contains
// the normalized target.
func FindWord(words []Word, target string) (Word, bool) {
	needle := NormalizeWord(target)
	if needle == "" {
		return Word{}, false
	}
	for _, w := range words {
		got := NormalizeWord(w.Word)
		if got == needle || strings.Contains(got, needle) {
			return w, true
		}
	}
	return Word{}, false
}

// NormalizeWord lower-cases s and strips punctuation and surrounding space.
func NormalizeWord(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *Project) replaceClip(idx int, with ...Clip) {
	out := make([]Clip, 0, len(p.EDL)-1+len(with))
	out = append(out, p.EDL[:idx]...)
	out = append(out, with...)
	out = append(out, p.EDL[idx+1:]...)
	p.EDL = out
}

// partitionWords splits words into those starting before at and the rest.
func partitionWords(words []Word, at float64) ([]Word, []Word) {
	if len(words) == 0 {
		return nil, nil
	}
	var before, after []Word
	for _, w := range words {
		if w.Start < at {
			before = append(before, w)
		} else {
			after = append(after, w)
		}
	}
	return before, after
}
