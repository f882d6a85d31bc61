package history

import (
	"context"
	"fmt"
	"log/slog"
)

// HistoryLimit is the number of recent turns forwarded to the model.
const HistoryLimit = 20

// Service coordinates the relational turn store with the optional
// Redis recent-turns cache.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService creates a history service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Record appends a turn to the store. A store failure is returned to
// the caller; a cache failure is only logged, the cache will be
// rebuilt from Postgres on the next read.
func (s *Service) Record(ctx context.Context, turn *Turn) error {
	if err := s.repo.Insert(ctx, turn); err != nil {
		return fmt.Errorf("recording %s turn: %w", turn.Role, err)
	}

	if s.cache != nil {
		if err := s.cache.Append(ctx, *turn); err != nil {
			slog.Warn("history: cache append failed", "error", err, "conversation_id", turn.ConversationID)
		}
	}
	return nil
}

// Context returns the last HistoryLimit turns of a conversation,
// oldest first, restricted to user and assistant roles. System rows
// never reach the prompt.
func (s *Service) Context(ctx context.Context, conversationID string) ([]Turn, error) {
	turns, err := s.recent(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	filtered := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleUser || t.Role == RoleAssistant {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

func (s *Service) recent(ctx context.Context, conversationID string) ([]Turn, error) {
	if s.cache != nil {
		turns, ok, err := s.cache.Recent(ctx, conversationID, HistoryLimit)
		if err != nil {
			slog.Warn("history: cache read failed, falling back to store", "error", err, "conversation_id", conversationID)
		} else if ok {
			return turns, nil
		}
	}

	turns, err := s.repo.Recent(ctx, conversationID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return turns, nil
}
