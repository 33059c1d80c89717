package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vidslicer/vidslicer/internal/media"
)

const (
	DefaultTimeout = 60 * time.Second

	errorBodyLimit = 4096
	jsonBodyLimit  = 8 << 20
)

// HTTPClient talks to the extraction backend over its JSON API.
// baseURL points at the API root, e.g. http://127.0.0.1:5000/api.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	history    *HTTPHistoryService
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	c.history = &HTTPHistoryService{client: c}
	return c
}

func (c *HTTPClient) History() HistoryGateway {
	return c.history
}

func (c *HTTPClient) Inspect(ctx context.Context, url string) (*media.VideoMetadata, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/inspect", map[string]string{"url": url})
	if err != nil {
		return nil, &InspectionError{Err: err}
	}

	c.logger.Info("inspecting url", "url", url, "request_id", req.Header.Get("X-Request-Id"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &InspectionError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &InspectionError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var md media.VideoMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, jsonBodyLimit)).Decode(&md); err != nil {
		return nil, &InspectionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal metadata: %w", err)}
	}

	c.logger.Info("inspection succeeded",
		"title", md.Title,
		"duration", md.Duration,
		"video_formats", len(md.Formats.Video),
		"audio_formats", len(md.Formats.Audio),
	)
	return &md, nil
}

// Download issues the download request and returns the response body as soon
// as the backend answers with a success status.
func (c *HTTPClient) Download(ctx context.Context, dl media.DownloadRequest) (io.ReadCloser, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/download", dl)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}
	req.Header.Set("Accept", "application/octet-stream")

	c.logger.Info("requesting download",
		"url", dl.URL,
		"format_id", dl.FormatID,
		"start", dl.StartTime,
		"end", dl.EndTime,
		"audio_only", dl.AudioOnly,
		"request_id", req.Header.Get("X-Request-Id"),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{Err: fmt.Errorf("http request failed: %w", err)}
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, &DownloadError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	return resp.Body, nil
}

// HTTPHistoryService is the backend's clip history endpoint pair.
type HTTPHistoryService struct {
	client *HTTPClient
}

func (s *HTTPHistoryService) List(ctx context.Context) ([]media.Clip, error) {
	req, err := s.client.newJSONRequest(ctx, http.MethodGet, "/clips", nil)
	if err != nil {
		return nil, &HistoryError{Err: err}
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, &HistoryError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &HistoryError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var clips []media.Clip
	if err := json.NewDecoder(io.LimitReader(resp.Body, jsonBodyLimit)).Decode(&clips); err != nil {
		return nil, &HistoryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal clips: %w", err)}
	}
	return clips, nil
}

func (s *HTTPHistoryService) Save(ctx context.Context, payload media.ClipPayload) (*media.Clip, error) {
	req, err := s.client.newJSONRequest(ctx, http.MethodPost, "/clip", payload)
	if err != nil {
		return nil, &HistoryError{Err: err}
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, &HistoryError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &HistoryError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var clip media.Clip
	if err := json.NewDecoder(io.LimitReader(resp.Body, jsonBodyLimit)).Decode(&clip); err != nil {
		return nil, &HistoryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal clip: %w", err)}
	}

	s.client.logger.Info("clip saved", "clip_id", clip.ID, "title", clip.Title)
	return &clip, nil
}

func (c *HTTPClient) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// readErrorMessage pulls the "message" (or "error") field out of a JSON error
// body. Non-JSON bodies are returned trimmed.
func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
