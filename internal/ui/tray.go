// Package ui shows the session status in the system tray.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/vidslicer/vidslicer/internal/session"
)

//go:embed icon.png
var iconBytes []byte

// Session is what the tray reads from and triggers on the controller.
type Session interface {
	Snapshot() session.Snapshot
	OnChange(fn func(session.Snapshot))
	Download(ctx context.Context) error
	RefreshHistory(ctx context.Context)
}

type Tray struct {
	session Session
	logger  *slog.Logger
	apiURL  string

	statusItem   *systray.MenuItem
	historyItem  *systray.MenuItem
	downloadItem *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onQuit func()
}

type TrayConfig struct {
	Session Session
	APIURL  string
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		session: cfg.Session,
		apiURL:  cfg.APIURL,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks until the tray exits. It must be called from the main goroutine
// on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("VidSlicer")
	systray.SetTooltip("VidSlicer Agent - " + t.apiURL)

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: Idle", "Current session status")
	t.statusItem.Disable()

	t.historyItem = systray.AddMenuItem("History: 0 clips", "Saved clips")
	t.historyItem.Disable()

	systray.AddSeparator()

	t.downloadItem = systray.AddMenuItem("Download selection", "Download the current selection")
	t.downloadItem.Disable()
	t.ready = true
	t.mu.Unlock()

	refreshItem := systray.AddMenuItem("Refresh history", "Reload clip history")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit VidSlicer Agent")

	t.session.OnChange(t.Update)
	t.Update(t.session.Snapshot())

	go func() {
		for {
			select {
			case <-t.downloadItem.ClickedCh:
				go t.handleDownload()
			case <-refreshItem.ClickedCh:
				go t.handleRefresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
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

func (t *Tray) handleDownload() {
	if err := t.session.Download(context.Background()); err != nil {
		t.logger.Warn("download from tray rejected", "error", err)
	}
}

func (t *Tray) handleRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t.session.RefreshHistory(ctx)
}

// Update redraws the menu from a session snapshot. Calls before the tray is
// ready are dropped.
func (t *Tray) Update(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return
	}
	t.statusItem.SetTitle(StatusLine(snap))
	t.historyItem.SetTitle(HistoryLine(snap, time.Now()))
	if snap.CanDownload && snap.Phase == session.PhaseReady {
		t.downloadItem.Enable()
	} else {
		t.downloadItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

// StatusLine renders the status menu entry for snap.
func StatusLine(snap session.Snapshot) string {
	switch snap.Phase {
	case session.PhaseInspecting:
		return "Status: Inspecting..."
	case session.PhaseDownloading:
		return "Status: Preparing download..."
	}

	if snap.Status != "" {
		return "Status: " + snap.Status
	}
	if snap.Phase == session.PhaseReady && snap.Metadata != nil {
		return "Status: Ready - " + truncate(snap.Metadata.Title, 40)
	}
	return "Status: Idle"
}

// HistoryLine renders the history entry, with the age of the newest clip.
func HistoryLine(snap session.Snapshot, now time.Time) string {
	n := len(snap.History)
	label := fmt.Sprintf("History: %d clips", n)
	if n == 1 {
		label = "History: 1 clip"
	}
	if n == 0 {
		return label
	}

	created, ok := parseCreatedAt(snap.History[0].CreatedAt)
	if !ok {
		return label
	}
	return label + " (last " + humanize.RelTime(created, now, "ago", "from now") + ")"
}

// parseCreatedAt accepts RFC 3339 and the zone-less ISO form the backend
// stores, which is read as UTC.
func parseCreatedAt(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
