package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type change struct {
	path  string
	event EventType
}

func newTestWatcher(t *testing.T) (*FSWatcher, chan change) {
	t.Helper()
	w, err := NewFSWatcher(testLogger(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	changes := make(chan change, 16)
	w.OnChange(func(path string, event EventType) {
		changes <- change{path, event}
	})
	return w, changes
}

func waitChange(t *testing.T, changes chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return change{}
	}
}

func TestFSWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trip.gravity.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Watch(ctx, path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{"n":1}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := waitChange(t, changes)
	if got.path != path || got.event != EventModify {
		t.Errorf("change = %+v, want modify of %s", got, path)
	}

	select {
	case extra := <-changes:
		t.Errorf("unexpected extra change %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFSWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trip.gravity.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := newTestWatcher(t)
	if err := w.Watch(context.Background(), path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		t.Errorf("unexpected change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFSWatcher_Stop(t *testing.T) {
	w, _ := newTestWatcher(t)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "x")); err != ErrStopped {
		t.Errorf("Watch() after Stop error = %v, want ErrStopped", err)
	}
}

func TestEventType_String(t *testing.T) {
	tests := map[EventType]string{EventCreate: "create", EventModify: "modify", EventDelete: "delete", EventType(9): "unknown"}
	for ev, want := range tests {
		if got := ev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", ev, got, want)
		}
	}
}
