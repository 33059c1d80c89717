package api

import (
	"time"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/media"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string         `json:"state"`
	Status       string         `json:"status,omitempty"`
	Failed       bool           `json:"failed"`
	HistoryCount int            `json:"historyCount"`
	HistoryMode  string         `json:"historyMode,omitempty"`
	DownloadDir  string         `json:"downloadDir,omitempty"`
	Backend      *BackendHealth `json:"backend,omitempty"`
}

type BackendHealth struct {
	Status      string `json:"status"`
	Healthy     bool   `json:"healthy"`
	LastProbeAt string `json:"lastProbeAt,omitempty"`
}

type URLRequest struct {
	URL string `json:"url"`
}

type FormatRequest struct {
	FormatID media.FormatID `json:"formatId"`
}

type AudioRequest struct {
	AudioOnly *bool   `json:"audioOnly,omitempty"`
	AudioExt  *string `json:"audioExt,omitempty"`
}

type TrimRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type HistoryResponse struct {
	Clips []media.Clip `json:"clips"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func HealthToResponse(h *backend.HealthStatus) *BackendHealth {
	if h == nil {
		return nil
	}
	resp := &BackendHealth{Status: h.Status, Healthy: h.Healthy}
	if !h.CheckedAt.IsZero() {
		resp.LastProbeAt = h.CheckedAt.Format(time.RFC3339)
	}
	return resp
}
