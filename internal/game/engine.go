// Package game holds the core loop: the matchmaking engine that partitions
// waiting players into matches, and the session manager that owns a match
// from creation through settlement.
package game

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/playarena/backend/internal/models"
)

// Queue is the slice of the queue store the engine drives. The engine never
// writes back to waiting entries: a tick that resurrects a snapshot would
// clobber entries cancelled or superseded while the tick ran.
type Queue interface {
	Snapshot(ctx context.Context, mode string) ([]models.QueueEntry, error)
	Remove(ctx context.Context, mode string, entries []models.QueueEntry) error
}

// SessionCreator instantiates a game session for a committed group, and
// tears one down again when the group's dequeue fails after creation.
type SessionCreator interface {
	Create(ctx context.Context, matchID string, players []models.MatchPlayer, mode string) (*models.Match, error)
	Discard(matchID string)
}

// Notifier receives core events for delivery to participants and the bus.
// Implementations must not block the core loop.
type Notifier interface {
	MatchFound(m *models.Match)
	GameStarted(m *models.Match)
	GameUpdate(m *models.Match, payload map[string]interface{})
	GameEnded(m *models.Match)
	RatingUpdated(p *models.Player, mode string)
}

const (
	// DefaultTickInterval is the matchmaking scan period per mode
	DefaultTickInterval = 2 * time.Second

	baseRatingDiff    = 100
	ratingDiffPerStep = 30
	relaxStep         = 10 * time.Second
)

// Engine runs one periodic matchmaking tick per mode. Modes are independent.
type Engine struct {
	queue    Queue
	sessions SessionCreator
	notify   Notifier
	tick     time.Duration
	now      func() time.Time
}

// NewEngine creates a matchmaking engine. tick <= 0 selects the default.
func NewEngine(queue Queue, sessions SessionCreator, notify Notifier, tick time.Duration) *Engine {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Engine{
		queue:    queue,
		sessions: sessions,
		notify:   notify,
		tick:     tick,
		now:      time.Now,
	}
}

// Run starts one tick worker per mode and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[MATCHMAKER] Starting tick workers (interval %v, modes %v)", e.tick, Modes())
	for _, mode := range Modes() {
		go e.runMode(ctx, mode)
	}
	<-ctx.Done()
	log.Printf("[MATCHMAKER] Workers stopped")
}

func (e *Engine) runMode(ctx context.Context, mode string) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.RunTick(ctx, mode); err != nil {
				// Tick skipped; the unchanged queue is re-scanned next tick.
				log.Printf("[MATCHMAKER] Tick failed for mode %s: %v", mode, err)
			}
		}
	}
}

// RunTick executes one matchmaking pass for a mode: snapshot, FIFO sort,
// greedy grouping, and an atomic create+dequeue+match_found per group.
func (e *Engine) RunTick(ctx context.Context, mode string) error {
	entries, err := e.queue.Snapshot(ctx, mode)
	if err != nil {
		return err
	}
	target := PlayersPerMatch(mode)
	if target == 0 || len(entries) < target {
		return nil
	}

	// FIFO fairness: longest-waiting players seed groups first.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})

	now := e.now()
	used := make([]bool, len(entries))

	for i := range entries {
		if used[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < len(entries) && len(group) < target; j++ {
			if used[j] {
				continue
			}
			if Compatible(entries[i], entries[j], mode, now) {
				group = append(group, j)
			}
		}
		if len(group) < target {
			continue // abandon; members stay available as later seeds
		}
		for _, k := range group {
			used[k] = true
		}
		e.emitMatch(ctx, mode, entries, group)
	}
	return nil
}

// emitMatch creates a session for a committed group, then removes the group
// from the queue and emits match_found. On create failure the members remain
// enqueued for the next tick; on remove failure the created session is
// discarded and match_found withheld, so a client never observes it without
// the dequeue having happened and the still-enqueued players cannot end up
// participants of two live matches.
func (e *Engine) emitMatch(ctx context.Context, mode string, entries []models.QueueEntry, group []int) {
	players := make([]models.MatchPlayer, len(group))
	removed := make([]models.QueueEntry, len(group))
	for i, k := range group {
		players[i] = models.MatchPlayer{
			ID:         entries[k].PlayerID,
			Username:   entries[k].Username,
			Rating:     entries[k].Rating,
			SessionTag: entries[k].SessionTag,
		}
		removed[i] = entries[k]
	}

	matchID := uuid.NewString()
	m, err := e.sessions.Create(ctx, matchID, players, mode)
	if err != nil {
		log.Printf("[MATCHMAKER] Session create failed for mode %s: %v", mode, err)
		return
	}
	if err := e.queue.Remove(ctx, mode, removed); err != nil {
		log.Printf("[MATCHMAKER] Dequeue failed for match %s, discarding session: %v", matchID, err)
		e.sessions.Discard(matchID)
		return
	}

	log.Printf("[MATCHMAKER] Match %s created: mode=%s players=%d", matchID, mode, len(players))
	e.notify.MatchFound(m)
}

// Compatible reports whether two waiting players may share a match. The
// rating gate widens with the longer of the two wait times; fps requires a
// shared region and chess a shared time control when both sides declare one.
// Symmetric and reflexive, not transitive.
func Compatible(a, b models.QueueEntry, mode string, now time.Time) bool {
	wait := now.Sub(a.JoinedAt)
	if w := now.Sub(b.JoinedAt); w > wait {
		wait = w
	}
	if wait < 0 {
		wait = 0
	}

	diff := a.Rating - b.Rating
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxRatingDiff(wait) {
		return false
	}

	switch mode {
	case "fps":
		if a.Preferences.Region != "" && b.Preferences.Region != "" &&
			a.Preferences.Region != b.Preferences.Region {
			return false
		}
	case "chess":
		if a.Preferences.TimeControl != "" && b.Preferences.TimeControl != "" &&
			a.Preferences.TimeControl != b.Preferences.TimeControl {
			return false
		}
	}
	return true
}

// MaxRatingDiff is the widest allowed rating gap after a given wait.
func MaxRatingDiff(wait time.Duration) int {
	if wait < 0 {
		wait = 0
	}
	return baseRatingDiff + ratingDiffPerStep*int(wait/relaxStep)
}
