package playback

import (
	"sync"
	"time"
)

// Op is a transport instruction sent to a preview client.
type Op string

const (
	OpLoad   Op = "load"
	OpSeek   Op = "seek"
	OpPlay   Op = "play"
	OpPause  Op = "pause"
	OpVolume Op = "volume"
	OpClose  Op = "close"
)

type ElementCommand struct {
	Slot   string  `json:"slot"`
	Op     Op      `json:"op"`
	Source string  `json:"source,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// RemoteDeck models media elements that live in a preview client. The client
// reports each element's position; the deck extrapolates between reports and
// queues the commands the client must execute.
type RemoteDeck struct {
	mu       sync.Mutex
	now      func() time.Time
	elements map[string]*RemoteElement
	pending  []ElementCommand
}

func NewRemoteDeck(now func() time.Time) *RemoteDeck {
	if now == nil {
		now = time.Now
	}
	return &RemoteDeck{now: now, elements: make(map[string]*RemoteElement)}
}

// Factory adapts the deck to a Syncer.
func (d *RemoteDeck) Factory(in Intent) (MediaElement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := &RemoteElement{deck: d, slot: in.Slot, source: in.Source, at: d.now()}
	d.elements[in.Slot] = el
	d.pending = append(d.pending, ElementCommand{Slot: in.Slot, Op: OpLoad, Source: in.Source})
	return el, nil
}

// Report records the position a client observed for a slot. Reports for
// unknown slots are ignored.
func (d *RemoteDeck) Report(slot string, pos float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[slot]; ok {
		el.pos = pos
		el.at = d.now()
	}
}

// Drain returns and clears the queued commands.
func (d *RemoteDeck) Drain() []ElementCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pending
	d.pending = nil
	return out
}

func (d *RemoteDeck) push(cmd ElementCommand) {
	d.pending = append(d.pending, cmd)
}

type RemoteElement struct {
	deck    *RemoteDeck
	slot    string
	source  string
	pos     float64
	at      time.Time
	playing bool
}

func (e *RemoteElement) Position() float64 {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	if !e.playing {
		return e.pos
	}
	return e.pos + e.deck.now().Sub(e.at).Seconds()
}

func (e *RemoteElement) Seek(pos float64) {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	e.pos = pos
	e.at = e.deck.now()
	e.deck.push(ElementCommand{Slot: e.slot, Op: OpSeek, Value: pos})
}

func (e *RemoteElement) SetVolume(v float64) {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	e.deck.push(ElementCommand{Slot: e.slot, Op: OpVolume, Value: v})
}

func (e *RemoteElement) Play() {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	e.pos += e.elapsed()
	e.at = e.deck.now()
	e.playing = true
	e.deck.push(ElementCommand{Slot: e.slot, Op: OpPlay})
}

func (e *RemoteElement) Pause() {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	e.pos += e.elapsed()
	e.at = e.deck.now()
	e.playing = false
	e.deck.push(ElementCommand{Slot: e.slot, Op: OpPause})
}

func (e *RemoteElement) Close() {
	e.deck.mu.Lock()
	defer e.deck.mu.Unlock()
	if e.deck.elements[e.slot] == e {
		delete(e.deck.elements, e.slot)
	}
	e.deck.push(ElementCommand{Slot: e.slot, Op: OpClose})
}

func (e *RemoteElement) elapsed() float64 {
	if !e.playing {
		return 0
	}
	return e.deck.now().Sub(e.at).Seconds()
}
