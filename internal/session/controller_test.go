package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/media"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMetadata struct {
	mu      sync.Mutex
	results map[string]*media.VideoMetadata
	err     error
	calls   []string
	block   chan struct{}
	started chan struct{}
}

func (f *fakeMetadata) Inspect(ctx context.Context, url string) (*media.VideoMetadata, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[url], nil
}

type fakeDownloads struct {
	mu       sync.Mutex
	requests []media.DownloadRequest
	payload  string
	err      error
}

func (f *fakeDownloads) Download(ctx context.Context, req media.DownloadRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.payload)), nil
}

type fakeHistory struct {
	mu      sync.Mutex
	nextID  int64
	saved   []media.ClipPayload
	list    []media.Clip
	listErr error
	saveErr error
}

func (f *fakeHistory) List(ctx context.Context) ([]media.Clip, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeHistory) Save(ctx context.Context, p media.ClipPayload) (*media.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.nextID++
	f.saved = append(f.saved, p)
	return &media.Clip{
		ID:          f.nextID,
		URL:         p.URL,
		Title:       p.Title,
		FormatLabel: p.FormatLabel,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Duration:    p.Duration,
		FileName:    p.FileName,
	}, nil
}

type testEnv struct {
	ctrl      *Controller
	metadata  *fakeMetadata
	downloads *fakeDownloads
	history   *fakeHistory
	fs        afero.Fs
}

func demoMetadata() *media.VideoMetadata {
	return &media.VideoMetadata{
		Title:    "Demo Clip",
		Platform: "youtube",
		Duration: 100,
		Formats: media.Formats{
			Video: []media.Format{{ID: "v1", Label: "720p", Ext: "mp4"}},
			Audio: []media.Format{},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		metadata: &fakeMetadata{results: map[string]*media.VideoMetadata{
			"https://x/video": demoMetadata(),
		}},
		downloads: &fakeDownloads{payload: "media-bytes"},
		history:   &fakeHistory{},
		fs:        afero.NewMemMapFs(),
	}
	env.ctrl = NewController(Deps{
		Metadata:  env.metadata,
		Downloads: env.downloads,
		History:   env.history,
		Saver:     NewFSSaver(env.fs, "/downloads", nil),
	})
	return env
}

func TestController_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.ctrl.Inspect(ctx, "https://x/video"); err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	snap := env.ctrl.Snapshot()
	if snap.SelectedFormat == nil || snap.SelectedFormat.ID != "v1" {
		t.Fatalf("default selection = %+v, want v1", snap.SelectedFormat)
	}
	if snap.Trim != (media.TrimRange{Start: 0, End: 100}) || !snap.FullVideo {
		t.Errorf("trim = %+v fullVideo = %v", snap.Trim, snap.FullVideo)
	}
	if snap.Phase != PhaseReady || !snap.CanDownload {
		t.Errorf("phase = %s canDownload = %v", snap.Phase, snap.CanDownload)
	}

	if err := env.ctrl.SetTrimRange(10, 40); err != nil {
		t.Fatalf("SetTrimRange() error = %v", err)
	}
	if err := env.ctrl.Download(ctx); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(env.downloads.requests) != 1 {
		t.Fatalf("download requests = %d, want 1", len(env.downloads.requests))
	}
	req := env.downloads.requests[0]
	if req.FormatID != "v1" || req.StartTime != 10 || req.EndTime != 40 || req.AudioOnly {
		t.Errorf("request = %+v", req)
	}
	if req.FileName != "Demo_Clip_720p.mp4" {
		t.Errorf("file name = %q, want Demo_Clip_720p.mp4", req.FileName)
	}
	if req.URL != "https://x/video" {
		t.Errorf("url = %q", req.URL)
	}

	snap = env.ctrl.Snapshot()
	if snap.Status != StatusDownloadStarted || snap.Downloading {
		t.Errorf("status = %q downloading = %v", snap.Status, snap.Downloading)
	}
	if snap.FullVideo {
		t.Error("trimmed range reported as full video")
	}

	data, err := afero.ReadFile(env.fs, "/downloads/Demo_Clip_720p.mp4")
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("saved payload = %q", data)
	}
	if snap.LastSavedPath != "/downloads/Demo_Clip_720p.mp4" {
		t.Errorf("LastSavedPath = %q", snap.LastSavedPath)
	}
}

func TestController_InspectResetsDerivedState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other := demoMetadata()
	other.Title = "Other"
	other.Duration = 250
	other.Formats.Video = []media.Format{
		{ID: "low", Label: "360p", Ext: "mp4"},
		{ID: "high", Label: "1080p", Ext: "webm"},
	}
	env.metadata.results["https://x/other"] = other

	env.ctrl.Inspect(ctx, "https://x/video")
	env.ctrl.SetTrimRange(20, 30)
	env.ctrl.ToggleAudioOnly(true)

	env.ctrl.Inspect(ctx, "https://x/other")

	snap := env.ctrl.Snapshot()
	if snap.Trim != (media.TrimRange{Start: 0, End: 250}) {
		t.Errorf("trim = %+v, want (0, 250)", snap.Trim)
	}
	if snap.AudioOnly {
		t.Error("audioOnly not reset")
	}
	if snap.SelectedFormat == nil || snap.SelectedFormat.ID != "high" {
		t.Errorf("selected = %+v, want high", snap.SelectedFormat)
	}
	if snap.Status != "" {
		t.Errorf("status = %q, want cleared", snap.Status)
	}
}

func TestController_InspectIgnoresEmptyURL(t *testing.T) {
	env := newTestEnv(t)

	if err := env.ctrl.Inspect(context.Background(), "   "); err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if len(env.metadata.calls) != 0 {
		t.Errorf("gateway called %d times", len(env.metadata.calls))
	}
	if snap := env.ctrl.Snapshot(); snap.Status != "" || snap.Phase != PhaseIdle {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestController_InspectFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      string
		retryable bool
	}{
		{"backend message", &backend.InspectionError{StatusCode: 400, Message: "Unsupported URL"}, "Unsupported URL", false},
		{"no message", &backend.InspectionError{Err: errors.New("dial tcp: refused")}, StatusInspectFailed, true},
		{"server error", &backend.InspectionError{StatusCode: 503}, StatusInspectFailed, true},
		{"untyped", errors.New("boom"), StatusInspectFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			env.ctrl.Inspect(ctx, "https://x/video")
			env.ctrl.SetTrimRange(5, 50)

			env.metadata.err = tt.err
			env.ctrl.Inspect(ctx, "https://x/broken")

			snap := env.ctrl.Snapshot()
			if snap.Status != tt.want || !snap.Failed {
				t.Errorf("status = %q failed = %v, want %q", snap.Status, snap.Failed, tt.want)
			}
			if snap.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", snap.Retryable, tt.retryable)
			}
			if snap.Inspecting {
				t.Error("inspecting not cleared")
			}
			if snap.Metadata == nil || snap.Metadata.Title != "Demo Clip" {
				t.Error("previous metadata not preserved")
			}
			if snap.Trim != (media.TrimRange{Start: 5, End: 50}) {
				t.Errorf("trim changed to %+v", snap.Trim)
			}
			if snap.SourceURL != "https://x/video" {
				t.Errorf("source url = %q", snap.SourceURL)
			}

			env.metadata.err = nil
			env.ctrl.Inspect(ctx, "https://x/video")
			if snap := env.ctrl.Snapshot(); snap.Failed || snap.Retryable {
				t.Errorf("after success failed = %v retryable = %v", snap.Failed, snap.Retryable)
			}
		})
	}
}

func TestController_DownloadWithoutMetadataIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.SetURL("https://x/video")

	before := env.ctrl.Snapshot()
	if err := env.ctrl.Download(context.Background()); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(env.downloads.requests) != 0 {
		t.Errorf("gateway called %d times", len(env.downloads.requests))
	}
	if after := env.ctrl.Snapshot(); after.Status != before.Status {
		t.Errorf("status changed to %q", after.Status)
	}
}

func TestController_AudioFormatResolution(t *testing.T) {
	tests := []struct {
		name  string
		audio []media.Format
		video []media.Format
		want  media.FormatID
	}{
		{
			name:  "matching ext",
			audio: []media.Format{{ID: "1", Ext: "m4a"}, {ID: "2", Ext: "mp3"}},
			video: []media.Format{{ID: "v1", Label: "720p", Ext: "mp4"}},
			want:  "2",
		},
		{
			name:  "first audio entry",
			audio: []media.Format{{ID: "1", Ext: "m4a"}, {ID: "3", Ext: "webm"}},
			video: []media.Format{{ID: "v1", Label: "720p", Ext: "mp4"}},
			want:  "1",
		},
		{
			name:  "selected video fallback",
			audio: nil,
			video: []media.Format{{ID: "v1", Label: "720p", Ext: "mp4"}},
			want:  "v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			md := demoMetadata()
			md.Formats.Audio = tt.audio
			md.Formats.Video = tt.video
			env.metadata.results["https://x/audio"] = md

			ctx := context.Background()
			env.ctrl.Inspect(ctx, "https://x/audio")
			env.ctrl.ToggleAudioOnly(true)
			env.ctrl.SelectAudioExt("mp3")
			env.ctrl.Download(ctx)

			if len(env.downloads.requests) != 1 {
				t.Fatalf("download requests = %d", len(env.downloads.requests))
			}
			req := env.downloads.requests[0]
			if req.FormatID != tt.want {
				t.Errorf("format id = %q, want %q", req.FormatID, tt.want)
			}
			if !req.AudioOnly || req.AudioFormat != "mp3" {
				t.Errorf("request = %+v", req)
			}
			if req.FileName != "Demo_Clip_0-100.mp3" {
				t.Errorf("file name = %q", req.FileName)
			}
		})
	}
}

func TestController_NoFormatAvailable(t *testing.T) {
	env := newTestEnv(t)
	md := demoMetadata()
	md.Formats.Video = nil
	md.Formats.Audio = nil
	env.metadata.results["https://x/empty"] = md

	ctx := context.Background()
	env.ctrl.Inspect(ctx, "https://x/empty")

	// Video mode without a selection is a silent no-op.
	env.ctrl.Download(ctx)
	if snap := env.ctrl.Snapshot(); snap.Status != "" || snap.CanDownload {
		t.Errorf("snapshot = %+v", snap)
	}

	env.ctrl.ToggleAudioOnly(true)
	env.ctrl.Download(ctx)

	snap := env.ctrl.Snapshot()
	if snap.Status != StatusNoFormat {
		t.Errorf("status = %q, want %q", snap.Status, StatusNoFormat)
	}
	if snap.Downloading {
		t.Error("downloading left set")
	}
	if len(env.downloads.requests) != 0 {
		t.Errorf("gateway called %d times", len(env.downloads.requests))
	}
}

func TestController_DownloadFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ctrl.Inspect(ctx, "https://x/video")

	env.downloads.err = &backend.DownloadError{StatusCode: 500}
	env.ctrl.Download(ctx)
	if snap := env.ctrl.Snapshot(); snap.Status != StatusDownloadFailed || snap.Downloading {
		t.Errorf("status = %q downloading = %v", snap.Status, snap.Downloading)
	}

	env.downloads.err = &backend.DownloadError{StatusCode: 400, Message: "Clip range invalid"}
	env.ctrl.Download(ctx)
	if snap := env.ctrl.Snapshot(); snap.Status != "Clip range invalid" {
		t.Errorf("status = %q", snap.Status)
	}
}

func TestController_DownloadSaveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.saver = NewFSSaver(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/downloads", nil)

	ctx := context.Background()
	env.ctrl.Inspect(ctx, "https://x/video")
	env.ctrl.Download(ctx)

	if snap := env.ctrl.Snapshot(); snap.Status != StatusDownloadFailed || !snap.Failed {
		t.Errorf("status = %q failed = %v", snap.Status, snap.Failed)
	}
}

func TestController_BusyGuard(t *testing.T) {
	env := newTestEnv(t)
	env.metadata.block = make(chan struct{})
	env.metadata.started = make(chan struct{})

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- env.ctrl.Inspect(ctx, "https://x/video") }()
	<-env.metadata.started

	if snap := env.ctrl.Snapshot(); snap.Phase != PhaseInspecting || snap.Status != StatusFetching {
		t.Errorf("phase = %s status = %q", snap.Phase, snap.Status)
	}
	if err := env.ctrl.Inspect(ctx, "https://x/video"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Inspect() error = %v, want ErrBusy", err)
	}

	close(env.metadata.block)
	if err := <-done; err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if len(env.metadata.calls) != 1 {
		t.Errorf("gateway calls = %d, want 1", len(env.metadata.calls))
	}
	if snap := env.ctrl.Snapshot(); snap.Phase != PhaseReady {
		t.Errorf("phase = %s, want ready", snap.Phase)
	}
}

func TestController_SetTrimRange(t *testing.T) {
	env := newTestEnv(t)

	if err := env.ctrl.SetTrimRange(1, 2); !errors.Is(err, ErrNoMedia) {
		t.Errorf("SetTrimRange() without metadata error = %v", err)
	}

	env.ctrl.Inspect(context.Background(), "https://x/video")

	if err := env.ctrl.SetTrimRange(-5, 500); err != nil {
		t.Fatalf("SetTrimRange() error = %v", err)
	}
	if snap := env.ctrl.Snapshot(); snap.Trim != (media.TrimRange{Start: 0, End: 100}) || !snap.FullVideo {
		t.Errorf("clamped trim = %+v", snap.Trim)
	}

	env.ctrl.SetTrimRange(10, 20)
	if err := env.ctrl.SetTrimRange(60, 30); !errors.Is(err, media.ErrInvalidRange) {
		t.Errorf("crossed SetTrimRange() error = %v", err)
	}
	if snap := env.ctrl.Snapshot(); snap.Trim != (media.TrimRange{Start: 10, End: 20}) {
		t.Errorf("trim changed to %+v", snap.Trim)
	}
}

func TestController_SelectFormat(t *testing.T) {
	env := newTestEnv(t)
	md := demoMetadata()
	md.Formats.Video = append(md.Formats.Video, media.Format{ID: "v2", Label: "1080p", Ext: "webm"})
	env.metadata.results["https://x/video"] = md

	if err := env.ctrl.SelectFormat("v1"); !errors.Is(err, ErrNoMedia) {
		t.Errorf("SelectFormat() without metadata error = %v", err)
	}

	env.ctrl.Inspect(context.Background(), "https://x/video")
	if snap := env.ctrl.Snapshot(); snap.SelectedFormat.ID != "v2" {
		t.Fatalf("default = %s, want v2", snap.SelectedFormat.ID)
	}

	if err := env.ctrl.SelectFormat("v1"); err != nil {
		t.Fatalf("SelectFormat() error = %v", err)
	}
	snap := env.ctrl.Snapshot()
	if snap.SelectedFormat.ID != "v1" || snap.FileName != "Demo_Clip_720p.mp4" {
		t.Errorf("selected = %s file = %s", snap.SelectedFormat.ID, snap.FileName)
	}

	if err := env.ctrl.SelectFormat("nope"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("SelectFormat(unknown) error = %v", err)
	}
}

func TestController_SaveClip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No metadata: nothing happens.
	env.ctrl.SaveClip(ctx)
	if len(env.history.saved) != 0 {
		t.Fatal("save called without metadata")
	}

	env.ctrl.Inspect(ctx, "https://x/video")
	env.ctrl.SetTrimRange(10, 40)
	env.ctrl.SaveClip(ctx)

	env.ctrl.ToggleAudioOnly(true)
	env.ctrl.SelectAudioExt("m4a")
	env.ctrl.SaveClip(ctx)

	if len(env.history.saved) != 2 {
		t.Fatalf("saved = %d, want 2", len(env.history.saved))
	}
	video, audio := env.history.saved[0], env.history.saved[1]
	if video.FormatLabel != "720p" || video.Duration != 30 || video.FileName != "Demo_Clip_720p.mp4" {
		t.Errorf("video payload = %+v", video)
	}
	if audio.FormatLabel != "Audio • m4a" || audio.FileName != "Demo_Clip_10-40.m4a" {
		t.Errorf("audio payload = %+v", audio)
	}
	if video.Platform != "youtube" || video.URL != "https://x/video" {
		t.Errorf("payload source fields = %+v", video)
	}

	snap := env.ctrl.Snapshot()
	if snap.Status != StatusClipSaved {
		t.Errorf("status = %q", snap.Status)
	}
	if len(snap.History) != 2 || snap.History[0].ID != 2 {
		t.Errorf("history = %+v", snap.History)
	}
}

func TestController_SaveClipFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ctrl.Inspect(ctx, "https://x/video")
	env.ctrl.SaveClip(ctx)

	env.history.saveErr = &backend.HistoryError{StatusCode: 503}
	env.ctrl.SaveClip(ctx)

	snap := env.ctrl.Snapshot()
	if snap.Status != StatusClipFailed {
		t.Errorf("status = %q, want %q", snap.Status, StatusClipFailed)
	}
	if len(snap.History) != 1 {
		t.Errorf("history len = %d, want 1", len(snap.History))
	}
}

func TestController_HistoryCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ctrl.Inspect(ctx, "https://x/video")

	for i := 0; i < media.MaxHistory+1; i++ {
		env.ctrl.SaveClip(ctx)
	}

	history := env.ctrl.History()
	if len(history) != media.MaxHistory {
		t.Fatalf("history len = %d, want %d", len(history), media.MaxHistory)
	}
	if history[0].ID != int64(media.MaxHistory+1) {
		t.Errorf("newest id = %d", history[0].ID)
	}
	if last := history[len(history)-1].ID; last != 2 {
		t.Errorf("oldest kept id = %d, want 2", last)
	}
}

func TestController_RefreshHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		env.history.list = append(env.history.list, media.Clip{ID: int64(60 - i), Title: fmt.Sprint(i)})
	}
	env.ctrl.RefreshHistory(ctx)
	if got := env.ctrl.History(); len(got) != media.MaxHistory || got[0].ID != 60 {
		t.Fatalf("history len = %d", len(got))
	}

	env.ctrl.Inspect(ctx, "https://x/video")
	env.ctrl.SaveClip(ctx)
	status := env.ctrl.Snapshot().Status

	env.history.listErr = &backend.HistoryError{StatusCode: 500, Message: "db down"}
	env.ctrl.RefreshHistory(ctx)

	snap := env.ctrl.Snapshot()
	if snap.Status != status {
		t.Errorf("status changed from %q to %q", status, snap.Status)
	}
	if snap.History == nil || len(snap.History) != 0 {
		t.Errorf("history = %+v, want empty", snap.History)
	}
}

func TestController_OnChange(t *testing.T) {
	env := newTestEnv(t)

	var phases []Phase
	env.ctrl.OnChange(func(s Snapshot) { phases = append(phases, s.Phase) })

	env.ctrl.Inspect(context.Background(), "https://x/video")

	want := []Phase{PhaseInspecting, PhaseReady}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
}
