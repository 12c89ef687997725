package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

//go:embed icon.png
var iconBytes []byte

type Tray struct {
	engine  *playback.Engine
	session *session.Session
	logger  *slog.Logger

	statusItem    *systray.MenuItem
	projectItem   *systray.MenuItem
	playItem      *systray.MenuItem
	keepOnlyItem  *systray.MenuItem
	exitShortItem *systray.MenuItem

	mu         sync.Mutex
	lastStatus string

	onKeepOnly func(bool)
	onQuit     func()
}

type TrayConfig struct {
	Engine     *playback.Engine
	Session    *session.Session
	Logger     *slog.Logger
	OnKeepOnly func(enabled bool)
	OnQuit     func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		engine:     cfg.Engine,
		session:    cfg.Session,
		logger:     cfg.Logger,
		onKeepOnly: cfg.OnKeepOnly,
		onQuit:     cfg.OnQuit,
	}
}

// Run blocks on the platform event loop. The tray follows playback until ctx
// is cancelled.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Gravity")
	systray.SetTooltip("Gravity Edits")

	t.statusItem = systray.AddMenuItem("Stopped", "Playback status")
	t.statusItem.Disable()
	t.projectItem = systray.AddMenuItem("No project", "Loaded project")
	t.projectItem.Disable()

	systray.AddSeparator()

	t.playItem = systray.AddMenuItem("Play", "Play or pause the preview")
	t.keepOnlyItem = systray.AddMenuItemCheckbox("Keep-only playback", "Skip rejected clips while playing", false)
	t.exitShortItem = systray.AddMenuItem("Exit short", "Return to the full project")
	t.exitShortItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Gravity Edits")

	if t.engine != nil {
		f := t.engine.State()
		if f.KeepOnly {
			t.keepOnlyItem.Check()
		}
		t.showFrame(f)
		go t.follow(ctx)
	}
	if t.session != nil {
		t.session.OnChange(t.showSession)
		if p := t.session.Snapshot(); p != nil {
			t.showSession(session.Event{Project: p, InShort: t.session.ActiveShort() >= 0})
		}
	}

	go func() {
		for {
			select {
			case <-t.playItem.ClickedCh:
				if t.engine != nil {
					t.showFrame(t.engine.Toggle())
				}
			case <-t.keepOnlyItem.ClickedCh:
				t.toggleKeepOnly()
			case <-t.exitShortItem.ClickedCh:
				t.exitShort()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-ctx.Done():
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) follow(ctx context.Context) {
	frames, cancel := t.engine.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			t.showFrame(f)
		}
	}
}

func (t *Tray) showFrame(f playback.Frame) {
	line := StatusLine(f)

	t.mu.Lock()
	defer t.mu.Unlock()
	if line == t.lastStatus {
		return
	}
	t.lastStatus = line
	t.statusItem.SetTitle(line)
	if f.State == playback.StatePlaying {
		t.playItem.SetTitle("Pause")
	} else {
		t.playItem.SetTitle("Play")
	}
}

func (t *Tray) showSession(ev session.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Project != nil {
		t.projectItem.SetTitle(ev.Project.Name)
	}
	if ev.InShort {
		t.exitShortItem.Enable()
	} else {
		t.exitShortItem.Disable()
	}
}

func (t *Tray) toggleKeepOnly() {
	if t.engine == nil {
		return
	}
	enabled := !t.keepOnlyItem.Checked()
	t.engine.SetKeepOnly(enabled)
	if enabled {
		t.keepOnlyItem.Check()
	} else {
		t.keepOnlyItem.Uncheck()
	}
	if t.onKeepOnly != nil {
		t.onKeepOnly(enabled)
	}
}

func (t *Tray) exitShort() {
	if t.session == nil {
		return
	}
	if err := t.session.ExitShort(); err != nil {
		t.logger.Warn("exit short from tray failed", "error", err)
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

// StatusLine renders a frame as "Playing 0:05 / 1:30".
func StatusLine(f playback.Frame) string {
	state := "Stopped"
	if f.State == playback.StatePlaying {
		state = "Playing"
	}
	return fmt.Sprintf("%s %s / %s", state, FormatClock(f.Time), FormatClock(f.Total))
}

// FormatClock formats seconds as m:ss, or h:mm:ss from one hour.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	h, m := s/3600, (s%3600)/60
	s %= 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
