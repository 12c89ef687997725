package playback

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	mu sync.Mutex
	p  *edl.Project
}

func (s *staticSource) Snapshot() *edl.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

func (s *staticSource) set(p *edl.Project) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

type fakeElement struct {
	source  string
	pos     float64
	volume  float64
	playing bool
	seeks   []float64
	closed  bool
}

func (f *fakeElement) Position() float64   { return f.pos }
func (f *fakeElement) SetVolume(v float64) { f.volume = v }
func (f *fakeElement) Play()               { f.playing = true }
func (f *fakeElement) Pause()              { f.playing = false }
func (f *fakeElement) Close()              { f.closed = true }

func (f *fakeElement) Seek(pos float64) {
	f.pos = pos
	f.seeks = append(f.seeks, pos)
}

type fakeFactory struct {
	made map[string][]*fakeElement
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{made: make(map[string][]*fakeElement)}
}

func (f *fakeFactory) create(in Intent) (MediaElement, error) {
	el := &fakeElement{source: in.Source}
	f.made[in.Slot] = append(f.made[in.Slot], el)
	return el, nil
}

func (f *fakeFactory) current(slot string) *fakeElement {
	els := f.made[slot]
	if len(els) == 0 {
		return nil
	}
	return els[len(els)-1]
}

func splitSampleProject(t *testing.T) *edl.Project {
	t.Helper()
	p := edl.NewProject("demo")
	p.EDL = sampleClips()
	if _, err := p.Split("A", 2); err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	return p
}

func newTestEngine(src SnapshotSource, clk *fakeClock, factory ElementFactory) *Engine {
	return NewEngine(EngineConfig{
		Source:  src,
		Factory: factory,
		Now:     clk.now,
		Logger:  testLogger(),
	})
}

func TestEngine_KeepOnlySkipsRejectedAfterSplit(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	ff := newFakeFactory()
	e := newTestEngine(src, clk, ff.create)

	e.SetKeepOnly(true)
	e.Seek(4.5)
	e.Play()

	crossed := false
	for i := 0; i < 40; i++ {
		clk.advance(50 * time.Millisecond)
		f := e.Step()
		if f.ClipID == "B" {
			t.Fatalf("keep-only playback landed in rejected clip at t=%v", f.Time)
		}
		if !crossed && f.Time >= 5 {
			crossed = true
			if f.Time < 8 || f.Time > 8.1 {
				t.Fatalf("first time past the split clip = %v, want ~8.0", f.Time)
			}
			if f.ClipID != "C" {
				t.Fatalf("ClipID = %q after skip, want C", f.ClipID)
			}
			if len(f.Resynced) == 0 {
				t.Error("skip should force a resync")
			}
		}
	}
	if !crossed {
		t.Fatal("playback never crossed the rejected clip")
	}
	if e.State().State != StatePlaying {
		t.Errorf("State = %v, want playing", e.State().State)
	}
}

func TestEngine_LinearPlaybackVisitsRejected(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	e := newTestEngine(src, clk, newFakeFactory().create)

	e.Seek(4.95)
	e.Play()
	clk.advance(100 * time.Millisecond)
	f := e.Step()
	if f.ClipID != "B" {
		t.Fatalf("ClipID = %q at %v, want B without keep-only", f.ClipID, f.Time)
	}
}

func TestEngine_DriftHysteresis(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	ff := newFakeFactory()
	e := newTestEngine(src, clk, ff.create)

	e.Play()
	video := ff.current(SlotVideo)
	if video == nil {
		t.Fatal("no video element created")
	}
	seeks := len(video.seeks)

	// Element lags by half a second while playing: inside the 0.8s tolerance.
	clk.advance(50 * time.Millisecond)
	f := e.Step()
	video.pos = f.Intents[0].Position - 0.5
	clk.advance(50 * time.Millisecond)
	e.Step()
	if len(video.seeks) != seeks {
		t.Fatalf("element re-seeked within playing tolerance")
	}

	// Lag beyond the tolerance forces a resync.
	video.pos -= 1
	clk.advance(50 * time.Millisecond)
	e.Step()
	if len(video.seeks) != seeks+1 {
		t.Fatalf("seeks = %d, want %d after large drift", len(video.seeks), seeks+1)
	}

	// Paused, the tight threshold applies.
	e.Pause()
	video.pos += 0.3
	e.Step()
	if len(video.seeks) != seeks+2 {
		t.Fatalf("seeks = %d, want %d with tight threshold", len(video.seeks), seeks+2)
	}
	if video.playing {
		t.Error("video element still playing after pause")
	}
}

func TestEngine_SeekForcesTightResync(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	ff := newFakeFactory()
	e := newTestEngine(src, clk, ff.create)

	e.Play()
	video := ff.current(SlotVideo)
	video.pos += 0.3

	f := e.Seek(e.State().Time)
	if len(f.Resynced) != 1 || f.Resynced[0] != SlotVideo {
		t.Fatalf("Resynced = %v, want [video]", f.Resynced)
	}
}

func TestEngine_TracksAndVolumes(t *testing.T) {
	p := splitSampleProject(t)
	if _, err := p.AddAudioClip("vo.wav", 1, 2, 4); err != nil {
		t.Fatalf("AddAudioClip() error = %v", err)
	}
	if err := p.SetBgMusic(edl.BgMusic{Source: "song.mp3", Volume: 1, Duration: 3}); err != nil {
		t.Fatalf("SetBgMusic() error = %v", err)
	}
	if err := p.SetTrackVolume("a2", 0.5); err != nil {
		t.Fatalf("SetTrackVolume() error = %v", err)
	}
	src := &staticSource{p: p}
	clk := &fakeClock{t: time.Unix(100, 0)}
	ff := newFakeFactory()
	e := newTestEngine(src, clk, ff.create)

	e.SetMasterVolume(0.8)
	f := e.Seek(7.5)

	if len(f.Intents) != 2 {
		t.Fatalf("Intents = %+v, want video and music", f.Intents)
	}
	music := f.Intents[1]
	if music.Slot != SlotMusic || math.Abs(music.Position-1.5) > eps {
		t.Errorf("music intent = %+v, want position 1.5 (7.5 mod 3)", music)
	}

	f = e.Seek(2)
	var audio *Intent
	for i := range f.Intents {
		if f.Intents[i].TrackKey == "a2" {
			audio = &f.Intents[i]
		}
	}
	if audio == nil {
		t.Fatalf("no a2 intent in %+v", f.Intents)
	}
	if math.Abs(audio.Volume-0.4) > eps || math.Abs(audio.Position-1) > eps {
		t.Errorf("audio intent = %+v, want volume 0.4 position 1", *audio)
	}
	if math.Abs(f.Intents[0].Volume-0.8) > eps {
		t.Errorf("video volume = %v, want 0.8", f.Intents[0].Volume)
	}

	// Leaving the audio clip's window releases its element.
	el := ff.current(audio.Slot)
	e.Seek(9)
	if !el.closed {
		t.Error("audio element not released after its clip ended")
	}
}

func TestEngine_SourceChangeReplacesElement(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	ff := newFakeFactory()
	e := newTestEngine(src, clk, ff.create)

	e.Seek(1)
	e.Seek(9)
	els := ff.made[SlotVideo]
	if len(els) != 2 {
		t.Fatalf("video elements = %d, want 2", len(els))
	}
	if !els[0].closed || els[1].source != "c.mp4" {
		t.Errorf("old element closed = %v, new source = %q", els[0].closed, els[1].source)
	}
	if math.Abs(els[1].pos-9) > eps {
		t.Errorf("new element position = %v, want 9", els[1].pos)
	}
}

func TestEngine_SnapshotSwapRebuildsTimeline(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	e := newTestEngine(src, clk, newFakeFactory().create)

	e.Seek(11)
	short := edl.NewProject("short")
	short.EDL = []edl.Clip{{ID: "C", Source: "c.mp4", Keep: true, Start: 8, End: 12}}
	src.set(short)

	f := e.Step()
	if f.Total != 4 || f.Time != 4 {
		t.Fatalf("frame = total %v time %v, want clamp to 4", f.Total, f.Time)
	}

	if _, err := e.SeekToClip("missing"); err == nil {
		t.Error("SeekToClip(missing) should fail")
	}
}

func TestEngine_Subscribe(t *testing.T) {
	src := &staticSource{p: splitSampleProject(t)}
	clk := &fakeClock{t: time.Unix(100, 0)}
	e := newTestEngine(src, clk, newFakeFactory().create)

	ch, cancel := e.Subscribe()
	e.Seek(3)
	select {
	case f := <-ch:
		if f.Time != 3 {
			t.Errorf("frame time = %v, want 3", f.Time)
		}
	default:
		t.Fatal("no frame delivered")
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}
	cancel()
}

func TestRemoteDeck_ExtrapolatesAndQueuesCommands(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	deck := NewRemoteDeck(clk.now)
	src := &staticSource{p: splitSampleProject(t)}
	e := NewEngine(EngineConfig{Source: src, Deck: deck, Now: clk.now, Logger: testLogger()})

	f := e.Play()
	ops := map[Op]bool{}
	for _, c := range f.Commands {
		ops[c.Op] = true
	}
	for _, want := range []Op{OpLoad, OpSeek, OpVolume, OpPlay} {
		if !ops[want] {
			t.Errorf("missing %s command in %+v", want, f.Commands)
		}
	}

	deck.Report(SlotVideo, 0)
	clk.advance(50 * time.Millisecond)
	f = e.Step()
	for _, c := range f.Commands {
		if c.Op == OpSeek {
			t.Errorf("unexpected seek while client is in sync: %+v", c)
		}
	}

	// A stalled client keeps reporting the same position until it drifts
	// past the playing tolerance.
	seeked := false
	for i := 0; i < 20 && !seeked; i++ {
		deck.Report(SlotVideo, 0)
		clk.advance(100 * time.Millisecond)
		for _, c := range e.Step().Commands {
			if c.Op == OpSeek && c.Slot == SlotVideo {
				seeked = true
			}
		}
	}
	if !seeked {
		t.Error("expected a seek for the stalled client")
	}
}
