package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playarena/backend/internal/models"
)

const gameTTL = 2 * time.Hour

func gameKey(id string) string {
	return "game:" + id
}

// GameStore persists match snapshots so finished or evicted matches remain
// readable over HTTP until their TTL lapses.
type GameStore struct {
	rdb *redis.Client
}

func NewGameStore(rdb *redis.Client) *GameStore {
	return &GameStore{rdb: rdb}
}

// Save writes the match snapshot under game:<id> with a 2-hour TTL.
func (s *GameStore) Save(ctx context.Context, m *models.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", m.ID, err)
	}
	if err := s.rdb.Set(ctx, gameKey(m.ID), data, gameTTL).Err(); err != nil {
		return fmt.Errorf("save match %s: %w", m.ID, err)
	}
	return nil
}

// Load reads a match snapshot. Returns models.ErrNotFound when absent.
func (s *GameStore) Load(ctx context.Context, id string) (*models.Match, error) {
	data, err := s.rdb.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("match %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", id, err)
	}
	var m models.Match
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &m, nil
}
