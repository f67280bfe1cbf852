package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/rating"
)

// MatchStore persists match snapshots.
type MatchStore interface {
	Save(ctx context.Context, m *models.Match) error
	Load(ctx context.Context, id string) (*models.Match, error)
}

// PlayerRatings is the slice of the player store used for settlement.
type PlayerRatings interface {
	UpdateRating(ctx context.Context, id, mode string, opponentRating int, outcome rating.Outcome) (*models.Player, error)
}

const (
	// DefaultStartDelay is the wall-clock delay from create to start
	DefaultStartDelay = 5 * time.Second
	// DefaultEvictDelay keeps a finished match readable before eviction
	DefaultEvictDelay = 60 * time.Second

	opBuffer = 256
)

// SessionManager owns every match from creation through settlement.
// State machine: starting -(start timer)-> active -(end)-> finished
// -(evict timer)-> evicted. The only other path is Discard, which takes a
// never-announced match straight from starting to evicted.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	players PlayerRatings
	store   MatchStore
	notify  Notifier

	startDelay time.Duration
	evictDelay time.Duration
}

// session is the per-match actor: one goroutine drains ops so action
// handling and state transitions within a match are totally ordered.
type session struct {
	mu     sync.Mutex
	match  *models.Match // immutable snapshot, replaced wholesale
	ops    chan func()
	closed bool
}

func (s *session) snapshot() *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match
}

func (s *session) replace(m *models.Match) {
	s.mu.Lock()
	s.match = m
	s.mu.Unlock()
}

// do enqueues an op for the actor goroutine. Returns false once the session
// is evicted or when the op queue is saturated.
func (s *session) do(op func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ops <- op:
		return true
	default:
		log.Printf("[SESSION] Op queue full for match %s, dropping", s.match.ID)
		return false
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ops)
}

func (s *session) loop() {
	for op := range s.ops {
		op()
	}
}

// NewSessionManager creates a session manager. Non-positive delays select
// the defaults.
func NewSessionManager(players PlayerRatings, store MatchStore, notify Notifier, startDelay, evictDelay time.Duration) *SessionManager {
	if startDelay <= 0 {
		startDelay = DefaultStartDelay
	}
	if evictDelay <= 0 {
		evictDelay = DefaultEvictDelay
	}
	return &SessionManager{
		sessions:   make(map[string]*session),
		players:    players,
		store:      store,
		notify:     notify,
		startDelay: startDelay,
		evictDelay: evictDelay,
	}
}

// Create persists a new match in status starting, keeps a hot reference in
// memory and schedules the delayed start. The players slice is frozen in the
// order given.
func (sm *SessionManager) Create(ctx context.Context, matchID string, players []models.MatchPlayer, mode string) (*models.Match, error) {
	if !ValidMode(mode) {
		return nil, fmt.Errorf("%w: unknown game mode %q", models.ErrInvalidInput, mode)
	}

	m := &models.Match{
		ID:        matchID,
		Mode:      mode,
		Players:   append([]models.MatchPlayer(nil), players...),
		Status:    models.StatusStarting,
		CreatedAt: time.Now(),
		Config:    ConfigFor(mode),
	}
	if err := sm.store.Save(ctx, m); err != nil {
		return nil, err
	}

	s := &session{match: m, ops: make(chan func(), opBuffer)}
	sm.mu.Lock()
	sm.sessions[matchID] = s
	sm.mu.Unlock()
	go s.loop()

	time.AfterFunc(sm.startDelay, func() {
		sm.Start(matchID)
	})

	log.Printf("[SESSION] Match %s created (mode=%s, players=%d)", matchID, mode, len(players))
	return m, nil
}

// Start transitions the match to active. No-op if already active or
// finished.
func (sm *SessionManager) Start(matchID string) {
	s := sm.get(matchID)
	if s == nil {
		return
	}
	s.do(func() {
		m := s.snapshot()
		if m.Status != models.StatusStarting {
			return
		}
		c := cloneMatch(m)
		now := time.Now()
		c.Status = models.StatusActive
		c.StartedAt = &now
		s.replace(c)
		sm.persist(c)
		log.Printf("[SESSION] Match %s started", c.ID)
		sm.notify.GameStarted(c)
	})
}

// HandleAction routes an in-game action. Anything invalid — unknown match,
// non-active status, a session tag that is not a participant, an unknown
// action — is dropped without a client-visible error.
func (sm *SessionManager) HandleAction(matchID, sessionTag, action string, payload map[string]interface{}) {
	s := sm.get(matchID)
	if s == nil {
		log.Printf("[SESSION] Dropping action %q for unknown match %s", action, matchID)
		return
	}
	s.do(func() {
		m := s.snapshot()
		if m.Status != models.StatusActive {
			return
		}
		p := m.PlayerBySessionTag(sessionTag)
		if p == nil {
			return
		}
		switch m.Mode {
		case "chess":
			sm.chessAction(s, m, p, action, payload)
		case "fps":
			sm.fpsAction(m, p, action, payload)
		default:
			log.Printf("[SESSION] No action dispatch for mode %s, dropping %q", m.Mode, action)
		}
	})
}

func (sm *SessionManager) chessAction(s *session, m *models.Match, p *models.MatchPlayer, action string, payload map[string]interface{}) {
	switch action {
	case "move":
		sm.notify.GameUpdate(m, map[string]interface{}{
			"type":     "move",
			"playerId": p.ID,
			"move": map[string]interface{}{
				"from": payload["from"],
				"to":   payload["to"],
			},
			"timestamp": time.Now().UnixMilli(),
		})
	case "resign":
		for i := range m.Players {
			if m.Players[i].ID != p.ID {
				winner := m.Players[i].ID
				sm.finish(s, &winner, models.ReasonResignation)
				return
			}
		}
	default:
		log.Printf("[SESSION] Unknown chess action %q in match %s, dropping", action, m.ID)
	}
}

func (sm *SessionManager) fpsAction(m *models.Match, p *models.MatchPlayer, action string, payload map[string]interface{}) {
	switch action {
	case "position_update":
		// Pass-through relay; no hit resolution happens here.
		sm.notify.GameUpdate(m, map[string]interface{}{
			"type":      "player_position",
			"playerId":  p.ID,
			"position":  payload["position"],
			"rotation":  payload["rotation"],
			"timestamp": time.Now().UnixMilli(),
		})
	case "shoot":
		sm.notify.GameUpdate(m, map[string]interface{}{
			"type":      "player_shoot",
			"playerId":  p.ID,
			"target":    payload["target"],
			"timestamp": time.Now().UnixMilli(),
		})
	default:
		log.Printf("[SESSION] Unknown fps action %q in match %s, dropping", action, m.ID)
	}
}

// End settles a match. Only an active match can finish; End on a match that
// is still starting or already finished is a no-op.
func (sm *SessionManager) End(matchID string, winnerID *string, reason string) error {
	s := sm.get(matchID)
	if s == nil {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	s.do(func() {
		sm.finish(s, winnerID, reason)
	})
	return nil
}

// Discard tears down a match whose queue removal failed after creation, so
// its still-enqueued players cannot become participants of a second match.
// Only a match that has not started is discarded: no settlement and no
// broadcast, since match_found was never emitted for it.
func (sm *SessionManager) Discard(matchID string) {
	s := sm.get(matchID)
	if s == nil {
		return
	}
	s.do(func() {
		m := s.snapshot()
		if m.Status != models.StatusStarting {
			return
		}
		c := cloneMatch(m)
		now := time.Now()
		c.Status = models.StatusFinished
		c.EndedAt = &now
		c.Result = &models.MatchResult{Reason: models.ReasonAbandoned}
		s.replace(c)
		sm.persist(c)
		log.Printf("[SESSION] Match %s discarded before start", c.ID)
		sm.evict(c.ID)
	})
}

// finish runs inside the match actor.
func (sm *SessionManager) finish(s *session, winnerID *string, reason string) {
	m := s.snapshot()
	if m.Status != models.StatusActive {
		return
	}
	c := cloneMatch(m)
	now := time.Now()
	c.Status = models.StatusFinished
	c.EndedAt = &now
	c.Result = &models.MatchResult{WinnerID: winnerID, Reason: reason}
	s.replace(c)
	sm.persist(c)

	log.Printf("[SESSION] Match %s finished (reason=%s)", c.ID, reason)
	sm.settle(c)
	sm.notify.GameEnded(c)

	time.AfterFunc(sm.evictDelay, func() {
		sm.evict(c.ID)
	})
}

// settle applies pairwise rating updates for rated modes. Only chess with
// exactly two participants is rated here.
func (sm *SessionManager) settle(m *models.Match) {
	if m.Mode != "chess" || len(m.Players) != 2 {
		return
	}
	a, b := m.Players[0], m.Players[1]

	var outcomeA, outcomeB rating.Outcome
	switch {
	case m.Result.WinnerID == nil:
		outcomeA, outcomeB = rating.Draw, rating.Draw
	case *m.Result.WinnerID == a.ID:
		outcomeA, outcomeB = rating.Win, rating.Loss
	case *m.Result.WinnerID == b.ID:
		outcomeA, outcomeB = rating.Loss, rating.Win
	default:
		log.Printf("[SESSION] Winner %s is not a participant of match %s, skipping settlement", *m.Result.WinnerID, m.ID)
		return
	}

	ctx := context.Background()
	sm.applyRating(ctx, m, a.ID, b.Rating, outcomeA)
	sm.applyRating(ctx, m, b.ID, a.Rating, outcomeB)
}

func (sm *SessionManager) applyRating(ctx context.Context, m *models.Match, playerID string, opponentRating int, outcome rating.Outcome) {
	p, err := sm.players.UpdateRating(ctx, playerID, m.Mode, opponentRating, outcome)
	if err != nil {
		log.Printf("[SESSION] Rating update failed for player %s in match %s: %v", playerID, m.ID, err)
		return
	}
	sm.notify.RatingUpdated(p, m.Mode)
}

func (sm *SessionManager) evict(matchID string) {
	sm.mu.Lock()
	s, ok := sm.sessions[matchID]
	if ok {
		delete(sm.sessions, matchID)
	}
	sm.mu.Unlock()
	if ok {
		s.close()
		log.Printf("[SESSION] Match %s evicted", matchID)
	}
}

// Get returns a match snapshot, consulting the hot map before the store.
func (sm *SessionManager) Get(ctx context.Context, matchID string) (*models.Match, error) {
	if s := sm.get(matchID); s != nil {
		return s.snapshot(), nil
	}
	return sm.store.Load(ctx, matchID)
}

// ActiveCount returns the number of matches currently held in memory.
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) get(matchID string) *session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[matchID]
}

func (sm *SessionManager) persist(m *models.Match) {
	if err := sm.store.Save(context.Background(), m); err != nil {
		log.Printf("[SESSION] Failed to persist match %s: %v", m.ID, err)
	}
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	c.Players = append([]models.MatchPlayer(nil), m.Players...)
	if m.StartedAt != nil {
		t := *m.StartedAt
		c.StartedAt = &t
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	return &c
}
