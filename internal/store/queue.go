package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playarena/backend/internal/models"
)

const queueTTL = time.Hour

// Sorted-set members are bare player IDs scored by rating; entry bodies live
// under their own keys so a per-player remove is O(log n).
func queueKey(mode string) string {
	return "queue:" + mode
}

func entryKey(mode, playerID string) string {
	return "queue:" + mode + ":entry:" + playerID
}

// QueueStore owns the per-mode matchmaking queues.
type QueueStore struct {
	rdb   *redis.Client
	modes []string
}

// RemovedEntry reports a queue entry cancelled by DequeueBySessionTag.
type RemovedEntry struct {
	Mode  string
	Entry models.QueueEntry
}

func NewQueueStore(rdb *redis.Client, modes []string) *QueueStore {
	return &QueueStore{rdb: rdb, modes: modes}
}

// Enqueue adds or supersedes the player's entry in a mode queue and
// refreshes the 1-hour queue TTL. Idempotent on (playerID, mode).
func (s *QueueStore) Enqueue(ctx context.Context, mode string, e models.QueueEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode queue entry %s/%s: %w", mode, e.PlayerID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, queueKey(mode), redis.Z{Score: float64(e.Rating), Member: e.PlayerID})
	pipe.Set(ctx, entryKey(mode, e.PlayerID), body, queueTTL)
	pipe.Expire(ctx, queueKey(mode), queueTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue %s/%s: %w", mode, e.PlayerID, err)
	}
	return nil
}

// Dequeue removes the player's entry from a mode queue. No-op if absent.
func (s *QueueStore) Dequeue(ctx context.Context, playerID, mode string) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, queueKey(mode), playerID)
	pipe.Del(ctx, entryKey(mode, playerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dequeue %s/%s: %w", mode, playerID, err)
	}
	return nil
}

// DequeueBySessionTag removes every queue entry carrying the given transport
// session tag, across all modes. Used on client disconnect.
func (s *QueueStore) DequeueBySessionTag(ctx context.Context, tag string) ([]RemovedEntry, error) {
	var removed []RemovedEntry
	for _, mode := range s.modes {
		entries, err := s.Snapshot(ctx, mode)
		if err != nil {
			return removed, err
		}
		var matched []models.QueueEntry
		for _, e := range entries {
			if e.SessionTag == tag {
				matched = append(matched, e)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if err := s.Remove(ctx, mode, matched); err != nil {
			return removed, err
		}
		for _, e := range matched {
			removed = append(removed, RemovedEntry{Mode: mode, Entry: e})
		}
	}
	return removed, nil
}

// Snapshot returns all current entries for a mode in set order. Entries
// whose body has expired are dropped from the set on the way through;
// callers must tolerate concurrent modification.
func (s *QueueStore) Snapshot(ctx context.Context, mode string) ([]models.QueueEntry, error) {
	ids, err := s.rdb.ZRange(ctx, queueKey(mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue snapshot %s: %w", mode, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(mode, id)
	}
	bodies, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("queue entry load %s: %w", mode, err)
	}

	entries := make([]models.QueueEntry, 0, len(ids))
	for i, raw := range bodies {
		body, ok := raw.(string)
		if !ok {
			// body expired independently of the set member
			if err := s.rdb.ZRem(ctx, queueKey(mode), ids[i]).Err(); err != nil {
				log.Printf("[QUEUE] Failed to drop orphaned member %s/%s: %v", mode, ids[i], err)
			}
			continue
		}
		var e models.QueueEntry
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			log.Printf("[QUEUE] Skipping corrupt entry %s/%s: %v", mode, ids[i], err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Remove deletes the given entries from a mode queue in one round trip.
func (s *QueueStore) Remove(ctx context.Context, mode string, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]interface{}, len(entries))
	keys := make([]string, len(entries))
	for i, e := range entries {
		members[i] = e.PlayerID
		keys[i] = entryKey(mode, e.PlayerID)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, queueKey(mode), members...)
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue remove %s (%d entries): %w", mode, len(entries), err)
	}
	return nil
}

// Count returns the number of players waiting in a mode queue.
func (s *QueueStore) Count(ctx context.Context, mode string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, queueKey(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue count %s: %w", mode, err)
	}
	return n, nil
}
