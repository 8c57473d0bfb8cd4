package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "chat_history:"
	historyTTL       = 24 * time.Hour
	historyMaxTurns  = 50
)

// HistoryStore keeps recent conversation turns per patient in Redis so a
// request that omits conversationHistory still gets context. The persisted
// transcript of record lives in Postgres; this is only the prompt window.
type HistoryStore struct {
	redis *redis.Client
}

// NewHistoryStore creates a Redis-backed history store. A nil client yields
// a nil store, which every method tolerates.
func NewHistoryStore(redisClient *redis.Client) *HistoryStore {
	if redisClient == nil {
		return nil
	}
	return &HistoryStore{redis: redisClient}
}

func historyKey(patientID uuid.UUID) string {
	return historyKeyPrefix + patientID.String()
}

// Save stores the rolling window, trimming the oldest turns.
func (s *HistoryStore) Save(ctx context.Context, patientID uuid.UUID, history []ChatMessage) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if len(history) > historyMaxTurns {
		history = history[len(history)-historyMaxTurns:]
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("assistant: marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(patientID), data, historyTTL).Err(); err != nil {
		return fmt.Errorf("assistant: persist history: %w", err)
	}
	return nil
}

// Load returns the stored window, or empty when none exists.
func (s *HistoryStore) Load(ctx context.Context, patientID uuid.UUID) ([]ChatMessage, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	data, err := s.redis.Get(ctx, historyKey(patientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("assistant: load history: %w", err)
	}
	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("assistant: decode history: %w", err)
	}
	return history, nil
}
