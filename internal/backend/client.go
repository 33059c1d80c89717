// Package backend implements the request/response contracts the session
// controller uses to talk to the media extraction service: inspection,
// download and clip history.
package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/vidslicer/vidslicer/internal/media"
)

// ErrBackendUnavailable is wrapped by the stub client's typed errors.
var ErrBackendUnavailable = errors.New("backend unavailable in offline mode")

type MetadataGateway interface {
	Inspect(ctx context.Context, url string) (*media.VideoMetadata, error)
}

// DownloadGateway fetches the encoded media. Callers must close the body.
type DownloadGateway interface {
	Download(ctx context.Context, req media.DownloadRequest) (io.ReadCloser, error)
}

// HistoryGateway lists clips newest first and creates new ones.
type HistoryGateway interface {
	List(ctx context.Context) ([]media.Clip, error)
	Save(ctx context.Context, payload media.ClipPayload) (*media.Clip, error)
}

type Client interface {
	MetadataGateway
	DownloadGateway
	History() HistoryGateway
}

// StubClient answers every call with an error. It backs offline runs so the
// rest of the agent can start without a reachable backend.
type StubClient struct {
	logger  *slog.Logger
	history *stubHistory
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger, history: &stubHistory{logger: logger}}
}

func (c *StubClient) Inspect(ctx context.Context, url string) (*media.VideoMetadata, error) {
	c.logger.Info("backend stub: inspect requested", "url", url)
	return nil, &InspectionError{Message: "Backend is offline", Err: ErrBackendUnavailable}
}

func (c *StubClient) Download(ctx context.Context, req media.DownloadRequest) (io.ReadCloser, error) {
	c.logger.Info("backend stub: download requested", "url", req.URL, "format_id", req.FormatID)
	return nil, &DownloadError{Message: "Backend is offline", Err: ErrBackendUnavailable}
}

func (c *StubClient) History() HistoryGateway {
	return c.history
}

func (c *StubClient) Health(ctx context.Context) (*HealthStatus, error) {
	return nil, ErrBackendUnavailable
}

type stubHistory struct {
	logger *slog.Logger
}

func (s *stubHistory) List(ctx context.Context) ([]media.Clip, error) {
	s.logger.Debug("backend stub: clip list requested")
	return nil, &HistoryError{Err: ErrBackendUnavailable}
}

func (s *stubHistory) Save(ctx context.Context, payload media.ClipPayload) (*media.Clip, error) {
	s.logger.Info("backend stub: clip save requested", "title", payload.Title)
	return nil, &HistoryError{Message: "Backend is offline", Err: ErrBackendUnavailable}
}
