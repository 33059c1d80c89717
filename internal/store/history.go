package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidslicer/vidslicer/internal/backend"
	"github.com/vidslicer/vidslicer/internal/media"
)

var _ backend.HistoryGateway = (*LocalHistory)(nil)

// LocalHistory serves the clip history from the agent's own database instead
// of the backend. It applies the same validation the backend does.
type LocalHistory struct {
	repo   Repository
	logger *slog.Logger
}

func NewLocalHistory(repo Repository, logger *slog.Logger) *LocalHistory {
	return &LocalHistory{repo: repo, logger: logger}
}

func (h *LocalHistory) List(ctx context.Context) ([]media.Clip, error) {
	clips, err := h.repo.ListClips(ctx, media.MaxHistory)
	if err != nil {
		return nil, &backend.HistoryError{Err: fmt.Errorf("list clips: %w", err)}
	}
	return clips, nil
}

func (h *LocalHistory) Save(ctx context.Context, p media.ClipPayload) (*media.Clip, error) {
	if p.URL == "" || p.Title == "" || p.FormatLabel == "" {
		return nil, &backend.HistoryError{Message: "Missing required clip fields"}
	}

	clip := &media.Clip{
		URL:          p.URL,
		Title:        p.Title,
		Platform:     p.Platform,
		ThumbnailURL: p.ThumbnailURL,
		FormatLabel:  p.FormatLabel,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Duration:     p.Duration,
		FileName:     p.FileName,
	}
	if err := h.repo.CreateClip(ctx, clip); err != nil {
		return nil, &backend.HistoryError{Err: fmt.Errorf("create clip: %w", err)}
	}

	// Answer with the stored row, as the backend does.
	saved, err := h.repo.GetClip(ctx, clip.ID)
	if err != nil {
		return nil, &backend.HistoryError{Err: fmt.Errorf("read clip %d: %w", clip.ID, err)}
	}
	if saved == nil {
		return nil, &backend.HistoryError{Message: "Saved clip not found"}
	}

	if h.logger != nil {
		h.logger.Info("clip saved locally", "clip_id", saved.ID, "title", saved.Title)
	}
	return saved, nil
}

// Count is the number of stored clips, which may exceed what List returns.
func (h *LocalHistory) Count(ctx context.Context) (int, error) {
	n, err := h.repo.CountClips(ctx)
	if err != nil {
		return 0, &backend.HistoryError{Err: fmt.Errorf("count clips: %w", err)}
	}
	return n, nil
}
