package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/rating"
)

// In-memory stand-ins for the Redis-backed stores, so the core loop can be
// exercised without a live backend.

type fakeQueue struct {
	mu          sync.Mutex
	entries     map[string]map[string]models.QueueEntry // mode -> playerID -> entry
	snapshotErr error
	removeErr   error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: make(map[string]map[string]models.QueueEntry)}
}

func (q *fakeQueue) Enqueue(_ context.Context, mode string, e models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.entries[mode] == nil {
		q.entries[mode] = make(map[string]models.QueueEntry)
	}
	q.entries[mode][e.PlayerID] = e
	return nil
}

func (q *fakeQueue) Snapshot(_ context.Context, mode string) ([]models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.snapshotErr != nil {
		return nil, q.snapshotErr
	}
	var out []models.QueueEntry
	for _, e := range q.entries[mode] {
		out = append(out, e)
	}
	return out, nil
}

func (q *fakeQueue) Remove(_ context.Context, mode string, entries []models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removeErr != nil {
		return q.removeErr
	}
	for _, e := range entries {
		delete(q.entries[mode], e.PlayerID)
	}
	return nil
}

func (q *fakeQueue) size(mode string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries[mode])
}

func (q *fakeQueue) get(mode, playerID string) (models.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[mode][playerID]
	return e, ok
}

type fakeSessions struct {
	mu        sync.Mutex
	created   []*models.Match
	discarded []string
	createErr error
}

func (f *fakeSessions) Create(_ context.Context, matchID string, players []models.MatchPlayer, mode string) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	m := &models.Match{
		ID:      matchID,
		Mode:    mode,
		Players: append([]models.MatchPlayer(nil), players...),
		Status:  models.StatusStarting,
		Config:  ConfigFor(mode),
	}
	f.created = append(f.created, m)
	return m, nil
}

func (f *fakeSessions) Discard(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, matchID)
}

func (f *fakeSessions) createdMatches() []*models.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Match(nil), f.created...)
}

func (f *fakeSessions) discardedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.discarded...)
}

type fakePlayers struct {
	mu      sync.Mutex
	players map[string]*models.Player
}

func newFakePlayers(ps ...*models.Player) *fakePlayers {
	f := &fakePlayers{players: make(map[string]*models.Player)}
	for _, p := range ps {
		f.players[p.ID] = p
	}
	return f
}

func (f *fakePlayers) UpdateRating(_ context.Context, id, mode string, opponentRating int, outcome rating.Outcome) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	next, err := rating.Next(p.Rating(mode), opponentRating, outcome, rating.DefaultKFactor)
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
	cp := *p
	return &cp, nil
}

func (f *fakePlayers) get(id string) models.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.players[id]
}

type fakeMatchStore struct {
	mu    sync.Mutex
	saved map[string]*models.Match
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{saved: make(map[string]*models.Match)}
}

func (s *fakeMatchStore) Save(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[m.ID] = m
	return nil
}

func (s *fakeMatchStore) Load(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.saved[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("match %s: %w", id, models.ErrNotFound)
}

// recorder captures every fan-out call for assertions.
type recorder struct {
	mu         sync.Mutex
	matchFound []*models.Match
	started    []*models.Match
	updates    []map[string]interface{}
	ended      []*models.Match
	ratings    []*models.Player
}

func (r *recorder) MatchFound(m *models.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchFound = append(r.matchFound, m)
}

func (r *recorder) GameStarted(m *models.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, m)
}

func (r *recorder) GameUpdate(_ *models.Match, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, payload)
}

func (r *recorder) GameEnded(m *models.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, m)
}

func (r *recorder) RatingUpdated(p *models.Player, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings = append(r.ratings, p)
}

func (r *recorder) matchFoundCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matchFound)
}

func (r *recorder) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func (r *recorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ended)
}

func (r *recorder) updatesCopy() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]interface{}(nil), r.updates...)
}

var errBackendDown = errors.New("backend unavailable")
