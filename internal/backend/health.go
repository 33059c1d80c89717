package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultHealthTTL = 30 * time.Second

type HealthStatus struct {
	Status    string    `json:"status"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
}

type HealthProber interface {
	Health(ctx context.Context) (*HealthStatus, error)
}

// Health calls GET /health on the backend root. The health route lives
// outside the API prefix, so a trailing "/api" is stripped from the base URL.
func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	root := strings.TrimSuffix(c.baseURL, "/api")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := &HealthStatus{CheckedAt: time.Now()}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	_ = json.Unmarshal(raw, status)
	status.Healthy = isSuccess(resp.StatusCode) && (status.Status == "" || status.Status == "ok")
	if status.Status == "" {
		status.Status = http.StatusText(resp.StatusCode)
	}
	return status, nil
}

// CachedHealth wraps a HealthProber to cache probe results for a TTL, so
// status polling does not hit the backend on every call.
type CachedHealth struct {
	prober HealthProber
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *HealthStatus
}

func NewCachedHealth(prober HealthProber, logger *slog.Logger) *CachedHealth {
	return &CachedHealth{
		prober: prober,
		ttl:    defaultHealthTTL,
		logger: logger,
	}
}

// Get returns cached health if fresh, otherwise re-probes.
func (h *CachedHealth) Get(ctx context.Context) (*HealthStatus, error) {
	h.mu.RLock()
	if h.cached != nil && time.Since(h.cached.CheckedAt) < h.ttl {
		status := h.cached
		h.mu.RUnlock()
		return status, nil
	}
	h.mu.RUnlock()

	return h.Refresh(ctx)
}

func (h *CachedHealth) Peek() *HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cached
}

// Refresh forces a new probe regardless of cache freshness. A failed probe
// falls back to the stale result when one exists.
func (h *CachedHealth) Refresh(ctx context.Context) (*HealthStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, err := h.prober.Health(ctx)
	if err != nil {
		h.logger.Warn("backend health probe failed", "error", err)
		if h.cached != nil {
			return h.cached, nil
		}
		return nil, err
	}

	h.cached = status
	return status, nil
}

func (h *CachedHealth) Invalidate() {
	h.mu.Lock()
	h.cached = nil
	h.mu.Unlock()
}
