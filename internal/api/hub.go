package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

type MessageType string

const (
	MsgFrame   MessageType = "frame"
	MsgProject MessageType = "project"
	MsgJob     MessageType = "job"
	MsgError   MessageType = "error"
	MsgPing    MessageType = "ping"
	MsgPong    MessageType = "pong"

	// Sent by preview clients.
	MsgReport MessageType = "report"
	MsgPlay   MessageType = "play"
	MsgPause  MessageType = "pause"
	MsgSeek   MessageType = "seek"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsReadLimit   = 4096
	wsSendBacklog = 64
)

// WSMessage is the envelope for every websocket message in both directions.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ReportData carries a preview element's observed position.
type ReportData struct {
	Slot     string  `json:"slot"`
	Position float64 `json:"position"`
}

type SeekData struct {
	Time   *float64 `json:"time,omitempty"`
	ClipID string   `json:"clipId,omitempty"`
}

// ProjectEventData is the payload of MsgProject.
type ProjectEventData struct {
	Kind    session.EventKind `json:"kind"`
	Op      string            `json:"op,omitempty"`
	Version uint64            `json:"version"`
	InShort bool              `json:"in_short"`
	Project *edl.Project      `json:"project"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

// Hub fans engine frames and editor events out to connected preview clients
// and feeds their position reports back into the engine.
type Hub struct {
	engine *playback.Engine
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(engine *playback.Engine, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		engine:  engine,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run forwards engine frames to all clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.engine == nil {
		return
	}
	frames, cancel := h.engine.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if h.ClientCount() == 0 {
				continue
			}
			if err := h.Broadcast(MsgFrame, f); err != nil {
				h.logger.Warn("broadcast frame failed", "error", err)
			}
		}
	}
}

// Broadcast encodes v once and queues it for every client. Clients whose
// queue is full miss the message.
func (h *Hub) Broadcast(t MessageType, v any) error {
	data, err := encodeMessage(t, v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	return nil
}

// FollowSession broadcasts every published snapshot as MsgProject.
func (h *Hub) FollowSession(s *session.Session) {
	s.OnChange(func(ev session.Event) {
		err := h.Broadcast(MsgProject, ProjectEventData{
			Kind:    ev.Kind,
			Op:      ev.Op,
			Version: ev.Version,
			InShort: ev.InShort,
			Project: ev.Project,
		})
		if err != nil {
			h.logger.Warn("broadcast project failed", "error", err)
		}
	})
}

// FollowJobs broadcasts job transitions as MsgJob.
func (h *Hub) FollowJobs(trackers ...*jobs.Tracker) {
	for _, t := range trackers {
		if t == nil {
			continue
		}
		t.OnUpdate(func(j jobs.Job) {
			if err := h.Broadcast(MsgJob, j); err != nil {
				h.logger.Warn("broadcast job failed", "job_id", j.ID, "error", err)
			}
		})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, wsSendBacklog)}
	h.register(c)

	if h.engine != nil {
		if data, err := encodeMessage(MsgFrame, h.engine.State()); err == nil {
			c.send <- data
		}
	}

	go c.writePump()
	c.readPump(r.Context())
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("preview client connected", "clients", n)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.once.Do(func() { close(c.send) })
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("preview client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.once.Do(func() { close(c.send) })
	}
}

func (h *Hub) handle(c *wsClient, msg WSMessage) {
	switch msg.Type {
	case MsgPing:
		c.queue(MsgPong, nil)
	case MsgReport:
		var rep ReportData
		if err := json.Unmarshal(msg.Data, &rep); err != nil || rep.Slot == "" {
			c.queue(MsgError, ErrorResponse{Error: "invalid report", Code: CodeBadRequest})
			return
		}
		if h.engine != nil {
			h.engine.ReportPosition(rep.Slot, rep.Position)
		}
	case MsgPlay, MsgPause, MsgSeek:
		if h.engine == nil {
			return
		}
		h.control(c, msg)
	default:
		c.queue(MsgError, ErrorResponse{Error: "unknown message type " + string(msg.Type), Code: CodeBadRequest})
	}
}

func (h *Hub) control(c *wsClient, msg WSMessage) {
	switch msg.Type {
	case MsgPlay:
		h.engine.Play()
	case MsgPause:
		h.engine.Pause()
	case MsgSeek:
		var sd SeekData
		if err := json.Unmarshal(msg.Data, &sd); err != nil {
			c.queue(MsgError, ErrorResponse{Error: "invalid seek", Code: CodeBadRequest})
			return
		}
		if sd.ClipID != "" {
			if _, err := h.engine.SeekToClip(sd.ClipID); err != nil {
				c.queue(MsgError, ErrorResponse{Error: err.Error(), Code: CodeNotFound})
			}
			return
		}
		if sd.Time != nil {
			h.engine.Seek(*sd.Time)
		}
	}
}

func (c *wsClient) queue(t MessageType, v any) {
	data, err := encodeMessage(t, v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.logger.Debug("invalid websocket message", "error", err)
			continue
		}
		c.hub.handle(c, msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeMessage(t MessageType, v any) ([]byte, error) {
	msg := WSMessage{Type: t, Timestamp: time.Now().UnixMilli()}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}
