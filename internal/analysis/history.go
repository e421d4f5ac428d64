package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raine/telegram-skinwise-bot/internal/storage"
)

// HistoryStore persists encrypted analysis payloads.
type HistoryStore interface {
	SaveAnalysis(ctx context.Context, a storage.StoredAnalysis) error
	GetAnalysis(ctx context.Context, userID, id string) (*storage.StoredAnalysis, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]storage.StoredAnalysis, error)
}

// History records and reads back completed analyses. It implements Recorder.
type History struct {
	store HistoryStore
}

func NewHistory(store HistoryStore) *History {
	return &History{store: store}
}

func (h *History) Record(ctx context.Context, userID string, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return h.store.SaveAnalysis(ctx, storage.StoredAnalysis{
		ID:        result.ID,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: result.CreatedAt,
	})
}

// Get returns nil, nil when the user has no analysis with that ID.
func (h *History) Get(ctx context.Context, userID, id string) (*Result, error) {
	stored, err := h.store.GetAnalysis(ctx, userID, id)
	if err != nil || stored == nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(stored.Payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis %s: %w", id, err)
	}
	return &result, nil
}

// List returns the user's latest analyses, newest first.
func (h *History) List(ctx context.Context, userID string, limit int) ([]Result, error) {
	stored, err := h.store.ListAnalyses(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(stored))
	for _, s := range stored {
		var r Result
		if err := json.Unmarshal(s.Payload, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis %s: %w", s.ID, err)
		}
		results = append(results, r)
	}
	return results, nil
}
