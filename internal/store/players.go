// Package store implements the persistence layer on Redis: player records,
// per-mode leaderboards, matchmaking queues and match snapshots. No other
// package touches Redis keys directly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/rating"
)

const (
	playerTTL = 24 * time.Hour

	// GlobalLeaderboard is the cross-mode aggregate board. Players are
	// inserted with their primary-mode rating at creation time.
	GlobalLeaderboard = "global"
)

func playerKey(id string) string {
	return "player:" + id
}

func leaderboardKey(mode string) string {
	return "leaderboard:" + mode
}

// PlayerStore owns player records and leaderboards.
type PlayerStore struct {
	rdb     *redis.Client
	modes   []string
	kFactor int
}

// NewPlayerStore creates a player store. modes is the set of game modes a
// fresh player gets a default rating for.
func NewPlayerStore(rdb *redis.Client, modes []string, kFactor int) *PlayerStore {
	if kFactor <= 0 {
		kFactor = rating.DefaultKFactor
	}
	return &PlayerStore{rdb: rdb, modes: modes, kFactor: kFactor}
}

// Create allocates a fresh player with default ratings in every mode and
// inserts it into the global leaderboard scored by its primary-mode rating.
func (s *PlayerStore) Create(ctx context.Context, username, primaryMode string) (*models.Player, error) {
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: username must be at least 2 printable characters", models.ErrInvalidInput)
	}
	found := false
	for _, m := range s.modes {
		if m == primaryMode {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: unknown game mode %q", models.ErrInvalidInput, primaryMode)
	}

	now := time.Now()
	p := &models.Player{
		ID:         uuid.NewString(),
		Username:   username,
		Ratings:    make(map[string]int, len(s.modes)),
		CreatedAt:  now,
		LastActive: now,
	}
	for _, m := range s.modes {
		p.Ratings[m] = models.DefaultRating
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.rdb.ZAdd(ctx, leaderboardKey(GlobalLeaderboard), redis.Z{
		Score:  float64(p.Rating(primaryMode)),
		Member: p.ID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("leaderboard insert for player %s: %w", p.ID, err)
	}

	log.Printf("[STORE] Created player %s (%s) primary=%s", p.ID, p.Username, primaryMode)
	return p, nil
}

// Get loads a player record. Returns models.ErrNotFound when absent.
func (s *PlayerStore) Get(ctx context.Context, id string) (*models.Player, error) {
	data, err := s.rdb.Get(ctx, playerKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", id, err)
	}
	var p models.Player
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", id, err)
	}
	return &p, nil
}

// UpdateRating applies one game result to the player's rating for mode,
// bumps exactly one counter, persists and upserts the mode leaderboard.
func (s *PlayerStore) UpdateRating(ctx context.Context, id, mode string, opponentRating int, outcome rating.Outcome) (*models.Player, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := rating.Next(p.Rating(mode), opponentRating, outcome, s.kFactor)
	if err != nil {
		return nil, err
	}

	p.Ratings[mode] = next
	p.GamesPlayed++
	switch outcome {
	case rating.Win:
		p.Wins++
	case rating.Loss:
		p.Losses++
	case rating.Draw:
		p.Draws++
	}
	p.LastActive = time.Now()

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	if err := s.rdb.ZAdd(ctx, leaderboardKey(mode), redis.Z{
		Score:  float64(next),
		Member: p.ID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("leaderboard upsert for player %s: %w", p.ID, err)
	}
	return p, nil
}

// Touch refreshes the player's lastActive and record TTL (presence update).
func (s *PlayerStore) Touch(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	p.LastActive = time.Now()
	return s.save(ctx, p)
}

// Leaderboard reads the top entries of a mode (or the global) board,
// descending by rating, with dense 1-based ranks. Rows whose player record
// has expired are skipped.
func (s *PlayerStore) Leaderboard(ctx context.Context, mode string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.rdb.ZRevRangeWithScores(ctx, leaderboardKey(mode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard read %s: %w", mode, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	keys := make([]string, len(rows))
	for i, z := range rows {
		keys[i] = playerKey(z.Member.(string))
	}
	bodies, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard player load %s: %w", mode, err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	ratings := make([]int, 0, len(rows))
	for i, z := range rows {
		raw, ok := bodies[i].(string)
		if !ok {
			continue // player record expired; keep rank sequence dense over returned rows
		}
		var p models.Player
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Printf("[STORE] Skipping corrupt player record on leaderboard %s: %v", mode, err)
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			PlayerID:    p.ID,
			Username:    p.Username,
			Rating:      int(z.Score),
			GamesPlayed: p.GamesPlayed,
		})
		ratings = append(ratings, int(z.Score))
	}

	for i, rank := range denseRanks(ratings) {
		entries[i].Rank = rank
	}
	return entries, nil
}

// save persists the record and refreshes the 24-hour sliding TTL.
func (s *PlayerStore) save(ctx context.Context, p *models.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", p.ID, err)
	}
	if err := s.rdb.Set(ctx, playerKey(p.ID), data, playerTTL).Err(); err != nil {
		return fmt.Errorf("save player %s: %w", p.ID, err)
	}
	return nil
}

// denseRanks assigns 1-based dense ranks to a descending rating sequence:
// equal ratings share a rank and the next distinct rating takes rank+1.
func denseRanks(ratings []int) []int {
	ranks := make([]int, len(ratings))
	rank := 0
	for i, r := range ratings {
		if i == 0 || r != ratings[i-1] {
			rank++
		}
		ranks[i] = rank
	}
	return ranks
}

func validUsername(name string) bool {
	printable := 0
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
		printable++
	}
	return printable >= 2
}
