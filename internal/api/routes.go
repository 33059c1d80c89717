package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidslicer/vidslicer/internal/media"
	"github.com/vidslicer/vidslicer/internal/session"
)

const maxBodyBytes = 64 << 10

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORS())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler(cfg))
			r.Put("/url", setURLHandler(cfg))
			r.Post("/inspect", inspectHandler(cfg))
			r.Put("/format", selectFormatHandler(cfg))
			r.Put("/audio", audioHandler(cfg))
			r.Put("/trim", trimHandler(cfg))
			r.Post("/download", downloadHandler(cfg))
			r.Post("/clip", saveClipHandler(cfg))
		})

		r.Get("/history", historyHandler(cfg))
		r.Post("/history/refresh", refreshHistoryHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Session.Snapshot()

		resp := StatusResponse{
			State:        string(snap.Phase),
			Status:       snap.Status,
			Failed:       snap.Failed,
			HistoryCount: len(snap.History),
			HistoryMode:  cfg.HistoryMode,
			DownloadDir:  cfg.DownloadDir,
		}

		if cfg.Health != nil {
			health, err := cfg.Health.Get(r.Context())
			if err != nil || health == nil {
				resp.Backend = &BackendHealth{Status: "unreachable"}
			} else {
				resp.Backend = HealthToResponse(health)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func sessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func setURLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req URLRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		cfg.Session.SetURL(req.URL)
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func inspectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req URLRequest
		if !decodeBody(w, r, &req, true) {
			return
		}

		url := req.URL
		if url == "" {
			url = cfg.Session.Snapshot().URL
		}
		if err := cfg.Session.Inspect(r.Context(), url); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func selectFormatHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FormatRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.FormatID == "" {
			WriteError(w, http.StatusBadRequest, "formatId is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.SelectFormat(req.FormatID); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AudioRequest
		if !decodeBody(w, r, &req, false) {
			return
		}

		if req.AudioOnly != nil {
			cfg.Session.ToggleAudioOnly(*req.AudioOnly)
		}
		if req.AudioExt != nil {
			cfg.Session.SelectAudioExt(*req.AudioExt)
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.Start == nil || req.End == nil {
			WriteError(w, http.StatusBadRequest, "start and end are required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.SetTrimRange(*req.Start, *req.End); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The download outlives the request that started it.
		ctx := context.WithoutCancel(r.Context())
		if err := cfg.Session.Download(ctx); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func saveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.SaveClip(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Session.Snapshot())
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HistoryResponse{Clips: cfg.Session.History()})
	}
}

func refreshHistoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Session.RefreshHistory(r.Context())
		WriteJSON(w, http.StatusOK, HistoryResponse{Clips: cfg.Session.History()})
	}
}

// decodeBody reads a JSON body into dst. With optional set an empty body is
// accepted. It writes the error response itself and reports whether to go on.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		WriteError(w, http.StatusConflict, "another request is in progress", "BUSY")
	case errors.Is(err, session.ErrNoMedia):
		WriteError(w, http.StatusConflict, "no video inspected", "NO_MEDIA")
	case errors.Is(err, session.ErrUnknownFormat):
		WriteError(w, http.StatusNotFound, "format not found", "NOT_FOUND")
	case errors.Is(err, media.ErrInvalidRange):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_RANGE")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
