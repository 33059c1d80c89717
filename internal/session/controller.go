// Package session owns the download session state machine: it sequences
// inspection, format and trim selection, downloads and clip saves against the
// backend gateways and turns every outcome into a status line.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/logging"
	"github.com/vidslicer/vidslicer/internal/media"
)

var (
	// ErrBusy is returned when an inspection or download is already in flight.
	ErrBusy = errors.New("session busy")

	ErrNoMedia       = errors.New("no video inspected")
	ErrUnknownFormat = errors.New("unknown format")

	errSkip = errors.New("precondition not met")
)

const (
	StatusFetching        = "Fetching metadata..."
	StatusInspectFailed   = "Unable to inspect video"
	StatusPreparing       = "Preparing your download..."
	StatusDownloadStarted = "Download started"
	StatusDownloadFailed  = "Download failed"
	StatusNoFormat        = "No format available for download"
	StatusClipSaved       = "Clip saved to history"
	StatusClipFailed      = "Failed to save clip"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseInspecting  Phase = "inspecting"
	PhaseReady       Phase = "ready"
	PhaseDownloading Phase = "downloading"
)

// State is the canonical session state. Everything else is derived from it.
type State struct {
	URL           string
	SourceURL     string
	Metadata      *media.VideoMetadata
	SelectedVideo *media.Format
	AudioOnly     bool
	AudioExt      string
	Trim          media.TrimRange
	Status        string
	Failed        bool
	Retryable     bool
	Inspecting    bool
	Downloading   bool
}

func (s State) phase() Phase {
	switch {
	case s.Inspecting:
		return PhaseInspecting
	case s.Downloading:
		return PhaseDownloading
	case s.Metadata != nil:
		return PhaseReady
	}
	return PhaseIdle
}

func (s State) selection() media.Selection {
	return media.Selection{
		Format:    s.SelectedVideo,
		AudioOnly: s.AudioOnly,
		AudioExt:  s.AudioExt,
		Range:     s.Trim,
	}
}

func (s State) canDownload() bool {
	return s.Metadata != nil && (s.SelectedVideo != nil || s.AudioOnly)
}

func (s State) formatLabel() string {
	if s.AudioOnly {
		return "Audio • " + s.AudioExt
	}
	if s.SelectedVideo != nil && s.SelectedVideo.Label != "" {
		return s.SelectedVideo.Label
	}
	return "video"
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	URL            string               `json:"url"`
	SourceURL      string               `json:"sourceUrl,omitempty"`
	Metadata       *media.VideoMetadata `json:"metadata"`
	SelectedFormat *media.Format        `json:"selectedFormat"`
	AudioOnly      bool                 `json:"audioOnly"`
	AudioExt       string               `json:"audioExt"`
	Trim           media.TrimRange      `json:"trim"`
	Status         string               `json:"status"`
	Failed         bool                 `json:"failed"`
	Retryable      bool                 `json:"retryable"`
	Inspecting     bool                 `json:"inspecting"`
	Downloading    bool                 `json:"downloading"`
	Phase          Phase                `json:"phase"`
	FullVideo      bool                 `json:"fullVideo"`
	FileName       string               `json:"fileName,omitempty"`
	CanDownload    bool                 `json:"canDownload"`
	LastSavedPath  string               `json:"lastSavedPath,omitempty"`
	History        []media.Clip         `json:"history"`
}

type Deps struct {
	Metadata  backend.MetadataGateway
	Downloads backend.DownloadGateway
	History   backend.HistoryGateway
	Saver     FileSaver
	Logger    *slog.Logger
}

type Controller struct {
	metadata  backend.MetadataGateway
	downloads backend.DownloadGateway
	clips     backend.HistoryGateway
	saver     FileSaver
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	history   []media.Clip
	lastSaved string
	onChange  func(Snapshot)
}

func NewController(deps Deps) *Controller {
	saver := deps.Saver
	if saver == nil {
		saver = discardSaver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		metadata:  deps.Metadata,
		downloads: deps.Downloads,
		clips:     deps.History,
		saver:     saver,
		logger:    logger,
		state:     State{AudioExt: media.DefaultAudioExt},
		history:   []media.Clip{},
	}
}

// OnChange registers fn to be called with a fresh snapshot after every state
// transition. fn runs outside the controller lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.state
	snap := Snapshot{
		URL:           s.URL,
		SourceURL:     s.SourceURL,
		Metadata:      s.Metadata,
		AudioOnly:     s.AudioOnly,
		AudioExt:      s.AudioExt,
		Trim:          s.Trim,
		Status:        s.Status,
		Failed:        s.Failed,
		Retryable:     s.Retryable,
		Inspecting:    s.Inspecting,
		Downloading:   s.Downloading,
		Phase:         s.phase(),
		FullVideo:     media.IsFullVideo(s.Trim, s.Metadata),
		CanDownload:   s.canDownload(),
		LastSavedPath: c.lastSaved,
		History:       media.CapHistory(c.history),
	}
	if s.SelectedVideo != nil {
		f := *s.SelectedVideo
		snap.SelectedFormat = &f
	}
	if s.Metadata != nil {
		snap.FileName = media.BuildFileName(s.Metadata, s.selection())
	}
	return snap
}

// mutate applies fn under the lock and notifies the observer.
func (c *Controller) mutate(fn func(s *State)) {
	c.transition(func(s *State) error {
		fn(s)
		return nil
	})
}

// transition is mutate for steps that may refuse to run. When fn returns an
// error the observer is not notified.
func (c *Controller) transition(fn func(s *State) error) error {
	c.mu.Lock()
	if err := fn(&c.state); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.snapshotLocked()
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	return nil
}

func setStatus(s *State, msg string, failed bool) {
	s.Status = msg
	s.Failed = failed
	s.Retryable = false
}

// setFailure records a failed step. Retryable tells the user that trying
// the same action again may succeed.
func setFailure(s *State, msg string, err error) {
	setStatus(s, msg, true)
	s.Retryable = backend.IsRetryable(err)
}

// SetURL records the URL typed by the user without inspecting it.
func (c *Controller) SetURL(url string) {
	c.mutate(func(s *State) { s.URL = url })
}

// Inspect asks the backend for the formats of url. An empty url is ignored.
// Gateway failures end up in the status line, not in the returned error.
func (c *Controller) Inspect(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	err := c.transition(func(s *State) error {
		if s.Inspecting || s.Downloading {
			return ErrBusy
		}
		s.URL = url
		s.Inspecting = true
		setStatus(s, StatusFetching, false)
		return nil
	})
	if err != nil {
		return err
	}

	var outcome func(s *State)
	defer func() {
		c.mutate(func(s *State) {
			s.Inspecting = false
			if outcome != nil {
				outcome(s)
			}
		})
	}()

	md, err := c.metadata.Inspect(ctx, url)
	if err == nil && md == nil {
		err = &backend.InspectionError{Message: "Empty response from backend"}
	}
	if err != nil {
		c.logger.Warn("inspection failed", "url", logging.SanitizeURL(url), "error", err)
		msg := backend.UserMessage(err, StatusInspectFailed)
		outcome = func(s *State) { setFailure(s, msg, err) }
		return nil
	}

	c.logger.Info("inspection complete", "url", logging.SanitizeURL(url), "title", md.Title,
		"video_formats", len(md.Formats.Video), "audio_formats", len(md.Formats.Audio))

	outcome = func(s *State) {
		s.Metadata = md
		s.SourceURL = url
		s.Trim = media.FullRange(md.Duration)
		s.SelectedVideo = media.DefaultVideoFormat(md.Formats.Video)
		s.AudioOnly = false
		setStatus(s, "", false)
	}
	return nil
}

// SelectFormat picks a video format of the current metadata by id.
func (c *Controller) SelectFormat(id media.FormatID) error {
	c.mu.Lock()
	md := c.state.Metadata
	c.mu.Unlock()
	if md == nil {
		return ErrNoMedia
	}

	f := media.FormatByID(md.Formats.Video, id)
	if f == nil {
		return ErrUnknownFormat
	}
	c.mutate(func(s *State) {
		if s.Metadata == md {
			s.SelectedVideo = f
		}
	})
	return nil
}

func (c *Controller) ToggleAudioOnly(on bool) {
	c.mutate(func(s *State) { s.AudioOnly = on })
}

func (c *Controller) SelectAudioExt(ext string) {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = media.DefaultAudioExt
	}
	c.mutate(func(s *State) { s.AudioExt = ext })
}

// SetTrimRange clamps both ends into the source duration. A crossed pair is
// rejected and the stored range is left as it was.
func (c *Controller) SetTrimRange(start, end float64) error {
	c.mu.Lock()
	md := c.state.Metadata
	c.mu.Unlock()
	if md == nil {
		return ErrNoMedia
	}

	r := media.TrimRange{Start: start, End: end}.Clamp(md.Duration)
	if err := r.Validate(md.Duration); err != nil {
		return err
	}
	c.mutate(func(s *State) {
		if s.Metadata == md {
			s.Trim = r
		}
	})
	return nil
}

// Download fetches the selected format for the current trim range and hands
// it to the file saver. Without metadata or a usable selection it does nothing.
func (c *Controller) Download(ctx context.Context) error {
	var req media.DownloadRequest
	err := c.transition(func(s *State) error {
		if !s.canDownload() {
			return errSkip
		}
		if s.Inspecting || s.Downloading {
			return ErrBusy
		}

		var fallback media.FormatID
		if s.SelectedVideo != nil {
			fallback = s.SelectedVideo.ID
		}
		formatID := fallback
		if s.AudioOnly {
			formatID = media.ResolveAudioFormatID(s.Metadata, s.AudioExt, fallback)
		}
		if formatID == "" {
			setStatus(s, StatusNoFormat, true)
			return nil
		}

		req = media.DownloadRequest{
			URL:         s.SourceURL,
			FormatID:    formatID,
			StartTime:   s.Trim.Start,
			EndTime:     s.Trim.End,
			AudioOnly:   s.AudioOnly,
			AudioFormat: s.AudioExt,
			FileName:    media.BuildFileName(s.Metadata, s.selection()),
		}
		s.Downloading = true
		setStatus(s, StatusPreparing, false)
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil
	}
	if err != nil || req.FormatID == "" {
		return err
	}

	var outcome func(s *State)
	defer func() {
		c.mutate(func(s *State) {
			s.Downloading = false
			if outcome != nil {
				outcome(s)
			}
		})
	}()

	logger := c.logger.With("url", logging.SanitizeURL(req.URL), "format_id", req.FormatID, "file_name", req.FileName)

	body, err := c.downloads.Download(ctx, req)
	if err != nil {
		logger.Warn("download failed", "error", err)
		msg := backend.UserMessage(err, StatusDownloadFailed)
		outcome = func(s *State) { setFailure(s, msg, err) }
		return nil
	}
	defer body.Close()

	path, err := c.saver.Save(ctx, req.FileName, body)
	if err != nil {
		logger.Error("failed to save download", "error", err)
		outcome = func(s *State) { setStatus(s, StatusDownloadFailed, true) }
		return nil
	}

	logger.Info("download complete", "path", logging.SanitizePath(path))
	outcome = func(s *State) {
		c.lastSaved = path
		setStatus(s, StatusDownloadStarted, false)
	}
	return nil
}

// SaveClip records the current selection in the clip history.
func (c *Controller) SaveClip(ctx context.Context) error {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	if s.Metadata == nil {
		return nil
	}

	payload := media.ClipPayload{
		URL:          s.SourceURL,
		Title:        s.Metadata.Title,
		Platform:     s.Metadata.Platform,
		ThumbnailURL: s.Metadata.BestThumbnail,
		FormatLabel:  s.formatLabel(),
		StartTime:    s.Trim.Start,
		EndTime:      s.Trim.End,
		Duration:     s.Trim.Duration(),
		FileName:     media.BuildFileName(s.Metadata, s.selection()),
	}

	clip, err := c.clips.Save(ctx, payload)
	if err == nil && clip == nil {
		err = &backend.HistoryError{Message: "Empty response from backend"}
	}
	if err != nil {
		c.logger.Warn("failed to save clip", "title", payload.Title, "error", err)
		msg := backend.UserMessage(err, StatusClipFailed)
		c.mutate(func(s *State) { setFailure(s, msg, err) })
		return nil
	}

	c.logger.Info("clip saved", "clip_id", clip.ID, "title", clip.Title)
	saved := *clip
	c.mutate(func(s *State) {
		c.history = media.PrependClip(c.history, saved)
		setStatus(s, StatusClipSaved, false)
	})
	return nil
}

// RefreshHistory reloads the clip list. A failed listing empties the list
// without touching the status line.
func (c *Controller) RefreshHistory(ctx context.Context) {
	clips, err := c.clips.List(ctx)
	if err != nil {
		c.logger.Debug("history refresh failed", "error", err)
		clips = nil
	}

	list := media.CapHistory(clips)
	c.mutate(func(s *State) { c.history = list })
}

func (c *Controller) History() []media.Clip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return media.CapHistory(c.history)
}
