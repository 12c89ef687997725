package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/db"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

const testToken = "test-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

type harness struct {
	router  *chi.Mux
	cfg     ServerConfig
	repo    *store.SQLiteRepository
	session *session.Session
}

func newHarness(t *testing.T, mutate ...func(*ServerConfig)) *harness {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := store.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), store.ConfigAuthToken, testToken); err != nil {
		t.Fatalf("set token: %v", err)
	}

	files, err := store.NewFileStore(filepath.Join(t.TempDir(), "projects"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	sess := session.New(session.Options{Logger: testLogger()})
	cfg := ServerConfig{
		Version:    "test",
		Session:    sess,
		Executor:   command.NewExecutor(testLogger()),
		Engine:     playback.NewEngine(playback.EngineConfig{Source: sess, Deck: playback.NewRemoteDeck(time.Now), Logger: testLogger()}),
		Persister:  &store.Persister{Files: files, Repo: repo, Logger: testLogger()},
		Repository: repo,
		Logger:     testLogger(),
		StartTime:  time.Now(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	return &harness{router: NewRouter(cfg), cfg: cfg, repo: repo, session: sess}
}

func (h *harness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if err := h.session.Load(sampleProject()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func sampleProject() *edl.Project {
	p := edl.NewProject("Trip")
	p.EDL = []edl.Clip{
		{ID: "1", Source: "a.mp4", Keep: true, Start: 0, End: 4, Words: []edl.Word{{Word: "hello", Start: 1, End: 1.5}}},
		{ID: "2", Source: "a.mp4", Keep: false, Start: 4, End: 6},
		{ID: "3", Source: "b.mp4", Keep: true, Start: 0, End: 3},
	}
	p.ViralShorts = []edl.ViralShort{{Title: "Best Bit", ClipIDs: []string{"3", "1"}}}
	return p
}

func TestHealth_NoAuth(t *testing.T) {
	h := newHarness(t)

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	h := newHarness(t)

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Project != "Trip" || resp.ClipCount != 3 || resp.Duration != 9 {
		t.Errorf("status = %+v", resp)
	}
	if resp.ActiveShort != -1 {
		t.Errorf("active short = %d, want -1", resp.ActiveShort)
	}
	if resp.AnalysisJob != nil || resp.RenderJob != nil {
		t.Errorf("unexpected jobs in status: %+v %+v", resp.AnalysisJob, resp.RenderJob)
	}
}

func TestLoadProject_Inline(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/projects/load", LoadProjectRequest{Project: sampleProject()})
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = h.do(t, http.MethodGet, "/project", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var resp ProjectResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Project == nil || resp.Project.Name != "Trip" || len(resp.Project.EDL) != 3 {
		t.Fatalf("project = %+v", resp.Project)
	}
	if resp.CanUndo {
		t.Error("fresh load should have no undo history")
	}
}

func TestLoadProject_ByName(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/projects/load", LoadProjectRequest{Name: "missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing project status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	if _, err := h.cfg.Persister.Save(context.Background(), sampleProject()); err != nil {
		t.Fatalf("save: %v", err)
	}
	rr = h.do(t, http.MethodPost, "/projects/load", LoadProjectRequest{Name: "Trip"})
	if rr.Code != http.StatusOK {
		t.Fatalf("load by name status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if h.session.Snapshot().Name != "Trip" {
		t.Errorf("session project = %q", h.session.Snapshot().Name)
	}
}

func TestLoadProject_BadBody(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/projects/load", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if body := decodeJSONBody(t, rr); body["code"] != CodeBadRequest {
		t.Errorf("code = %v, want %s", body["code"], CodeBadRequest)
	}
}

func TestGetProject_NoneLoaded(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/project", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestEditErrors(t *testing.T) {
	offset := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		method   string
		target   string
		body     any
		wantCode int
		wantErr  string
	}{
		{"split ok", http.MethodPost, "/project/clips/1/split", SplitRequest{Offset: offset(2)}, http.StatusOK, ""},
		{"split unknown clip", http.MethodPost, "/project/clips/nope/split", SplitRequest{Offset: offset(1)}, http.StatusNotFound, CodeNotFound},
		{"split at edge", http.MethodPost, "/project/clips/1/split", SplitRequest{Offset: offset(0.01)}, http.StatusBadRequest, CodeValidation},
		{"split without point", http.MethodPost, "/project/clips/1/split", SplitRequest{}, http.StatusBadRequest, CodeBadRequest},
		{"remove word without transcript", http.MethodPost, "/project/clips/3/remove-word", RemoveWordRequest{Word: "hi"}, http.StatusUnprocessableEntity, CodeUnavailable},
		{"remove missing word", http.MethodPost, "/project/clips/1/remove-word", RemoveWordRequest{Word: "goodbye"}, http.StatusNotFound, CodeNotFound},
		{"segment out of bounds", http.MethodPost, "/project/clips/1/remove-segment", RemoveSegmentRequest{Start: 3, End: 9}, http.StatusBadRequest, CodeValidation},
		{"delete unknown audio", http.MethodDelete, "/project/audio/zzz", nil, http.StatusNotFound, CodeNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.load(t)
			before := h.session.Version()

			rr := h.do(t, tc.method, tc.target, tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tc.wantCode, rr.Body.String())
			}
			if tc.wantErr == "" {
				if h.session.Version() == before {
					t.Error("successful edit should bump the version")
				}
				return
			}
			if body := decodeJSONBody(t, rr); body["code"] != tc.wantErr {
				t.Errorf("code = %v, want %s", body["code"], tc.wantErr)
			}
			if h.session.Version() != before {
				t.Error("failed edit must not change the project")
			}
		})
	}
}

func TestSplitAndUndo(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	at := 2.0

	rr := h.do(t, http.MethodPost, "/project/clips/1/split", SplitRequest{Offset: &at})
	if rr.Code != http.StatusOK {
		t.Fatalf("split status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var edit EditResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &edit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(edit.IDs) != 2 || edit.IDs[0] != "1" || !strings.HasPrefix(edit.IDs[1], "1_split_") {
		t.Fatalf("ids = %v", edit.IDs)
	}
	if got := len(h.session.Snapshot().EDL); got != 4 {
		t.Fatalf("clips after split = %d, want 4", got)
	}

	rr = h.do(t, http.MethodPost, "/project/undo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("undo status = %d", rr.Code)
	}
	if got := len(h.session.Snapshot().EDL); got != 3 {
		t.Fatalf("clips after undo = %d, want 3", got)
	}

	rr = h.do(t, http.MethodPost, "/project/undo", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("empty undo status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRemoveWord(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/project/clips/1/remove-word", RemoveWordRequest{Word: "Hello!"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var edit EditResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &edit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if edit.Word == nil || edit.Word.Start != 1 || edit.Word.End != 1.5 {
		t.Fatalf("removed word = %+v", edit.Word)
	}

	var rejected int
	for _, c := range h.session.Snapshot().EDL {
		if !c.Keep && c.Reason == edl.RemovedSegmentReason {
			rejected++
		}
	}
	if rejected != 1 {
		t.Errorf("removed segments = %d, want 1", rejected)
	}
}

func TestPatchClip(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	keep := true
	text := "new words"

	rr := h.do(t, http.MethodPatch, "/project/clips/2", ClipPatchRequest{Keep: &keep, Text: &text})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	c := h.session.Snapshot().EDL[1]
	if !c.Keep || c.Text != "new words" {
		t.Errorf("clip = %+v", c)
	}
}

func TestEdit_NoProject(t *testing.T) {
	h := newHarness(t)
	at := 1.0

	rr := h.do(t, http.MethodPost, "/project/clips/1/split", SplitRequest{Offset: &at})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestShorts_EnterExit(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/project/shorts/0/enter", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("enter status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var short ShortResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &short); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if short.Partial || len(short.Result.Resolved) != 2 {
		t.Errorf("short result = %+v", short.Result)
	}
	snap := h.session.Snapshot()
	if snap.Name != "Trip [Best Bit]" || snap.EDL[0].ID != "3" {
		t.Fatalf("derived project = %q, first clip %q", snap.Name, snap.EDL[0].ID)
	}

	rr = h.do(t, http.MethodPost, "/project/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var saved SaveProjectResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.Name != "Trip" {
		t.Errorf("saved %q, want the base project", saved.Name)
	}

	rr = h.do(t, http.MethodPost, "/project/shorts/exit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("exit status = %d", rr.Code)
	}
	if got := h.session.Snapshot().Name; got != "Trip" {
		t.Errorf("after exit project = %q, want Trip", got)
	}

	rr = h.do(t, http.MethodPost, "/project/shorts/exit", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("second exit status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestShorts_BadIndex(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/project/shorts/7/enter", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = h.do(t, http.MethodPost, "/project/shorts/x/enter", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestShorts_NoResolvableClips(t *testing.T) {
	h := newHarness(t)
	p := sampleProject()
	p.ViralShorts = append(p.ViralShorts, edl.ViralShort{Title: "Gone", ClipIDs: []string{"8", "9"}})
	if err := h.session.Load(p); err != nil {
		t.Fatalf("load: %v", err)
	}

	rr := h.do(t, http.MethodPost, "/project/shorts/1/enter", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d, body = %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["code"] != CodeNotFound {
		t.Errorf("code = %v, want %s", body["code"], CodeNotFound)
	}
	if got := h.session.Snapshot().Name; got != "Trip" {
		t.Errorf("project = %q, want the base project", got)
	}
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/commands", CommandRequest{Text: "```tool_code\ngravity_ai.cut_clip(clip_id=\"1\")\n```"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp CommandResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Recognized || !resp.Committed || len(resp.Outcomes) != 1 || !resp.Outcomes[0].OK {
		t.Fatalf("response = %+v", resp)
	}
	if h.session.Snapshot().EDL[0].Keep {
		t.Error("clip 1 should be cut")
	}

	rr = h.do(t, http.MethodPost, "/commands", CommandRequest{Text: "just chatting"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp = CommandResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Recognized || resp.Committed {
		t.Errorf("plain text response = %+v", resp)
	}
	if len(resp.Messages) != 1 || resp.Messages[0] != "just chatting" {
		t.Errorf("messages = %v", resp.Messages)
	}

	rr = h.do(t, http.MethodPost, "/commands", CommandRequest{Text: "  "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

type fakeChat struct {
	reply string
	err   error
	got   cloud.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req cloud.ChatRequest) (string, error) {
	f.got = req
	return f.reply, f.err
}

func TestChat(t *testing.T) {
	chat := &fakeChat{reply: "Done.\n```tool_code\ngravity_ai.keep_clip(clip_id=\"2\")\n```"}
	h := newHarness(t, func(cfg *ServerConfig) {
		cfg.Chat = chat
		cfg.APIKey = "k"
	})
	h.load(t)

	rr := h.do(t, http.MethodPost, "/chat", ChatRequest{Query: "restore the second clip"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Command == nil || !resp.Command.Committed {
		t.Fatalf("command = %+v", resp.Command)
	}
	if !h.session.Snapshot().EDL[1].Keep {
		t.Error("clip 2 should be kept")
	}
	if chat.got.ProjectName != "Trip" || chat.got.APIKey != "k" || chat.got.State == nil {
		t.Errorf("chat request = %+v", chat.got)
	}
}

func TestChat_PlainReply(t *testing.T) {
	h := newHarness(t, func(cfg *ServerConfig) {
		cfg.Chat = &fakeChat{reply: "Clip 1 is the intro."}
	})
	h.load(t)
	before := h.session.Version()

	rr := h.do(t, http.MethodPost, "/chat", ChatRequest{Query: "what is clip 1?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "Clip 1 is the intro." || resp.Command != nil {
		t.Errorf("response = %+v", resp)
	}
	if h.session.Version() != before {
		t.Error("plain reply must not edit the project")
	}
}

func TestChat_ProseMentionDoesNotEdit(t *testing.T) {
	replies := []string{
		"Clip 3 drags a bit. I can run cut_clip(clip_id=3) for you - just say the word.",
		"You could try remove_word( on clip 1 later, once it has a transcript.",
	}
	for _, reply := range replies {
		h := newHarness(t, func(cfg *ServerConfig) {
			cfg.Chat = &fakeChat{reply: reply}
		})
		h.load(t)
		before := h.session.Version()

		rr := h.do(t, http.MethodPost, "/chat", ChatRequest{Query: "any ideas?"})
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		var resp ChatResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Reply != reply || resp.Command != nil {
			t.Errorf("response = %+v", resp)
		}
		if h.session.Version() != before || !h.session.Snapshot().EDL[2].Keep {
			t.Errorf("reply %q edited the project", reply)
		}
	}
}

func TestChat_Errors(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/chat", ChatRequest{Query: "hi"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	h = newHarness(t, func(cfg *ServerConfig) {
		cfg.Chat = &fakeChat{err: &cloud.ServiceError{Service: "chat", StatusCode: 500, Body: "boom"}}
	})
	h.load(t)

	rr = h.do(t, http.MethodPost, "/chat", ChatRequest{Query: "hi"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("upstream status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if body := decodeJSONBody(t, rr); body["code"] != CodeUpstream {
		t.Errorf("code = %v, want %s", body["code"], CodeUpstream)
	}
}

func TestPlayback(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	at := 5.0

	rr := h.do(t, http.MethodPost, "/playback/seek", SeekRequest{Time: &at})
	if rr.Code != http.StatusOK {
		t.Fatalf("seek status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var f playback.Frame
	if err := json.Unmarshal(rr.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Time != 5 || f.Total != 9 || f.ClipID != "2" {
		t.Errorf("frame = time %v total %v clip %q", f.Time, f.Total, f.ClipID)
	}

	rr = h.do(t, http.MethodPost, "/playback/seek", SeekRequest{ClipID: "3"})
	if rr.Code != http.StatusOK {
		t.Fatalf("seek clip status = %d", rr.Code)
	}
	f = playback.Frame{}
	if err := json.Unmarshal(rr.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Time != 6 || f.ClipID != "3" {
		t.Errorf("frame = time %v clip %q, want 6 and 3", f.Time, f.ClipID)
	}

	rr = h.do(t, http.MethodPost, "/playback/seek", SeekRequest{ClipID: "nope"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown clip seek status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = h.do(t, http.MethodPost, "/playback/seek", SeekRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty seek status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPlayback_SettingsPersist(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPut, "/playback/keep-only", KeepOnlyRequest{Enabled: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("keep-only status = %d", rr.Code)
	}
	got, err := h.repo.GetConfig(context.Background(), store.ConfigKeepOnly)
	if err != nil || got != "true" {
		t.Errorf("keep_only = %q, %v", got, err)
	}

	rr = h.do(t, http.MethodPut, "/playback/volume", VolumeRequest{Volume: 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("volume status = %d", rr.Code)
	}
	got, err = h.repo.GetConfig(context.Background(), store.ConfigMasterVolume)
	if err != nil || got != "1" {
		t.Errorf("master_volume = %q, %v, want clamped 1", got, err)
	}
}

func TestExportEDL_Inline(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/export/edl", ExportEDLRequest{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["event_count"] != float64(2) {
		t.Errorf("event_count = %v, want 2", body["event_count"])
	}
	content, _ := body["content"].(string)
	if !strings.HasPrefix(content, "TITLE: Trip") {
		t.Errorf("content = %q", content)
	}
}

func TestExportEDL_ToDir(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/export/edl", ExportEDLRequest{OutputDir: dir})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	path, _ := body["output_path"].(string)
	if filepath.Dir(path) != dir {
		t.Fatalf("output_path = %q, want inside %q", path, dir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("edl file: %v", err)
	}

	rr = h.do(t, http.MethodPost, "/export/edl", ExportEDLRequest{OutputDir: filepath.Join(dir, "missing")})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing dir status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRenderPayload(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodGet, "/export/payload?short=0", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["renderMode"] != "portrait" {
		t.Errorf("renderMode = %v, want portrait", body["renderMode"])
	}

	rr = h.do(t, http.MethodGet, "/export/payload?short=4", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad short status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRenderJob_Unconfigured(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rr := h.do(t, http.MethodPost, "/jobs/render", RenderJobRequest{})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestRenderJob_SubmitAndCancel(t *testing.T) {
	cancelled := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/export-video/":
			var req struct {
				Mode    string          `json:"mode"`
				Project json.RawMessage `json:"project"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Project) == 0 {
				http.Error(w, "bad payload", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"status": "queued", "job_id": "r1"})
		case strings.HasPrefix(r.URL.Path, "/cancel-export/"):
			cancelled <- strings.TrimPrefix(r.URL.Path, "/cancel-export/")
			w.WriteHeader(http.StatusOK)
		default:
			json.NewEncoder(w).Encode(map[string]any{"status": "processing", "progress": 10})
		}
	}))
	defer srv.Close()

	render := cloud.NewRenderClient(cloud.Options{BaseURL: srv.URL, Logger: testLogger()})
	h := newHarness(t, func(cfg *ServerConfig) {
		cfg.Render = render
		cfg.RenderTracker = jobs.NewTracker(jobs.Config{
			Kind:         jobs.KindRender,
			Client:       render,
			PollInterval: time.Hour,
			Logger:       testLogger(),
		})
	})
	h.load(t)

	rr := h.do(t, http.MethodPost, "/jobs/render", RenderJobRequest{Mode: "local"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var job jobs.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != "r1" || job.State != jobs.StatePolling || job.Project != "Trip" {
		t.Fatalf("job = %+v", job)
	}

	rr = h.do(t, http.MethodGet, "/jobs/r1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, "/jobs/render/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rr.Code, rr.Body.String())
	}
	job = jobs.Job{}
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.State != jobs.StateCancelled {
		t.Errorf("state = %s, want cancelled", job.State)
	}

	select {
	case id := <-cancelled:
		if id != "r1" {
			t.Errorf("cancelled %q, want r1", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("render service never received the cancel")
	}

	rr = h.do(t, http.MethodPost, "/jobs/render/cancel", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRenderJob_VideoDBNeedsKey(t *testing.T) {
	render := cloud.NewRenderClient(cloud.Options{BaseURL: "http://127.0.0.1:1"})
	h := newHarness(t, func(cfg *ServerConfig) {
		cfg.Render = render
		cfg.RenderTracker = jobs.NewTracker(jobs.Config{Kind: jobs.KindRender, Client: render, Logger: testLogger()})
	})
	h.load(t)

	rr := h.do(t, http.MethodPost, "/jobs/render", RenderJobRequest{Mode: "videodb"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = h.do(t, http.MethodPost, "/jobs/render", RenderJobRequest{Mode: "cloud"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMedia_Range(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, func(cfg *ServerConfig) {
		cfg.Media = playback.NewMediaServer(dir, testLogger())
	})

	req := httptest.NewRequest(http.MethodGet, "/media/a.mp4", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=2-4")
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusPartialContent)
	}
	if rr.Body.String() != "234" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "234")
	}

	req = httptest.NewRequest(http.MethodGet, "/media/a.mp4", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "10.0.0.1:50000"
	rr = httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("remote status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestProjects_ListAndDelete(t *testing.T) {
	h := newHarness(t)
	if _, err := h.cfg.Persister.Save(context.Background(), sampleProject()); err != nil {
		t.Fatalf("save: %v", err)
	}

	rr := h.do(t, http.MethodGet, "/projects", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list ProjectsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Projects) != 1 || list.Projects[0].Name != "Trip" || list.Projects[0].ClipCount != 3 {
		t.Fatalf("projects = %+v", list.Projects)
	}

	rr = h.do(t, http.MethodDelete, "/projects/Trip", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = h.do(t, http.MethodDelete, "/projects/Trip", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
