package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playarena/backend/internal/models"
)

const (
	waitFor  = 2 * time.Second
	pollTick = 5 * time.Millisecond
)

func testPlayer(id string, chessRating int) *models.Player {
	return &models.Player{
		ID:       id,
		Username: id,
		Ratings:  map[string]int{"chess": chessRating, "fps": 1000, "moba": 1000, "rts": 1000},
	}
}

func matchPlayers(ps ...*models.Player) []models.MatchPlayer {
	out := make([]models.MatchPlayer, len(ps))
	for i, p := range ps {
		out[i] = models.MatchPlayer{
			ID:         p.ID,
			Username:   p.Username,
			Rating:     p.Ratings["chess"],
			SessionTag: "tag-" + p.ID,
		}
	}
	return out
}

func TestMatchLifecycle(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1200)
	fp := newFakePlayers(alice, bob)
	fs := newFakeMatchStore()
	rec := &recorder{}
	sm := NewSessionManager(fp, fs, rec, 20*time.Millisecond, time.Hour)

	ctx := context.Background()
	m, err := sm.Create(ctx, "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, m.Status)
	assert.Equal(t, 1, sm.ActiveCount())

	// 5-second timer stands in at 20 ms here
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	got, err := sm.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	require.NotNil(t, got.StartedAt)

	// Chess move relayed to all participants
	sm.HandleAction("m1", "tag-alice", "move", map[string]interface{}{"from": "e2", "to": "e4"})
	require.Eventually(t, func() bool { return len(rec.updatesCopy()) == 1 }, waitFor, pollTick)

	update := rec.updatesCopy()[0]
	assert.Equal(t, "move", update["type"])
	assert.Equal(t, "alice", update["playerId"])
	move := update["move"].(map[string]interface{})
	assert.Equal(t, "e2", move["from"])
	assert.Equal(t, "e4", move["to"])

	// Settlement: alice (1000) beats bob (1200)
	winner := "alice"
	require.NoError(t, sm.End("m1", &winner, models.ReasonCompleted))
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, waitFor, pollTick)

	a, b := fp.get("alice"), fp.get("bob")
	assert.Equal(t, 1024, a.Ratings["chess"])
	assert.Equal(t, 1176, b.Ratings["chess"])
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, b.Losses)
	assert.Equal(t, a.GamesPlayed, a.Wins+a.Losses+a.Draws)
	assert.Equal(t, b.GamesPlayed, b.Wins+b.Losses+b.Draws)

	got, err = sm.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "alice", *got.Result.WinnerID)
	assert.Equal(t, models.ReasonCompleted, got.Result.Reason)
}

func TestSecondEndIsNoOp(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	winner := "alice"
	require.NoError(t, sm.End("m1", &winner, models.ReasonCompleted))
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, waitFor, pollTick)

	require.NoError(t, sm.End("m1", &winner, models.ReasonCompleted))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, rec.endedCount())
	assert.Equal(t, 1, fp.get("alice").GamesPlayed, "ratings must apply exactly once")
	assert.Equal(t, 1, fp.get("bob").GamesPlayed)
}

func TestDrawSettlement(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	require.NoError(t, sm.End("m1", nil, models.ReasonCompleted))
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, waitFor, pollTick)

	a, b := fp.get("alice"), fp.get("bob")
	assert.Equal(t, 1000, a.Ratings["chess"], "equal-rated draw moves nobody")
	assert.Equal(t, 1000, b.Ratings["chess"])
	assert.Equal(t, 1, a.Draws)
	assert.Equal(t, 1, b.Draws)
}

func TestResignEndsMatch(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	sm.HandleAction("m1", "tag-bob", "resign", nil)
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, waitFor, pollTick)

	got, err := sm.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, "alice", *got.Result.WinnerID)
	assert.Equal(t, models.ReasonResignation, got.Result.Reason)
	assert.Equal(t, 1, fp.get("alice").Wins)
	assert.Equal(t, 1, fp.get("bob").Losses)
}

func TestActionsBeforeStartAreDropped(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	rec := &recorder{}
	sm := NewSessionManager(newFakePlayers(alice, bob), newFakeMatchStore(), rec, time.Hour, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)

	sm.HandleAction("m1", "tag-alice", "move", map[string]interface{}{"from": "e2", "to": "e4"})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.updatesCopy())
}

func TestNonParticipantActionsAreDropped(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	rec := &recorder{}
	sm := NewSessionManager(newFakePlayers(alice, bob), newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	sm.HandleAction("m1", "tag-mallory", "move", map[string]interface{}{"from": "e2", "to": "e4"})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.updatesCopy())
}

func TestFPSActionsAreRelayedWithoutSettlement(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "fps")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	sm.HandleAction("m1", "tag-alice", "position_update", map[string]interface{}{
		"position": map[string]interface{}{"x": 1.0, "y": 2.0},
		"rotation": 90.0,
	})
	sm.HandleAction("m1", "tag-bob", "shoot", map[string]interface{}{"target": "alice"})
	require.Eventually(t, func() bool { return len(rec.updatesCopy()) == 2 }, waitFor, pollTick)

	updates := rec.updatesCopy()
	assert.Equal(t, "player_position", updates[0]["type"])
	assert.Equal(t, "alice", updates[0]["playerId"])
	assert.Equal(t, "player_shoot", updates[1]["type"])
	assert.Equal(t, "bob", updates[1]["playerId"])

	// fps settles without rating updates
	require.NoError(t, sm.End("m1", nil, models.ReasonAbandoned))
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, waitFor, pollTick)
	assert.Equal(t, 0, fp.get("alice").GamesPlayed)
	assert.Equal(t, 0, fp.get("bob").GamesPlayed)
}

func TestActionOrderIsPreservedPerMatch(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	rec := &recorder{}
	sm := NewSessionManager(newFakePlayers(alice, bob), newFakeMatchStore(), rec, 5*time.Millisecond, time.Hour)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	moves := []string{"e2", "e7", "g1", "b8", "f1"}
	for _, from := range moves {
		sm.HandleAction("m1", "tag-alice", "move", map[string]interface{}{"from": from, "to": "x"})
	}
	require.Eventually(t, func() bool { return len(rec.updatesCopy()) == len(moves) }, waitFor, pollTick)

	for i, update := range rec.updatesCopy() {
		move := update["move"].(map[string]interface{})
		assert.Equal(t, moves[i], move["from"])
	}
}

func TestEvictionRemovesHotReference(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	rec := &recorder{}
	fs := newFakeMatchStore()
	sm := NewSessionManager(newFakePlayers(alice, bob), fs, rec, 5*time.Millisecond, 20*time.Millisecond)

	_, err := sm.Create(context.Background(), "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.startedCount() == 1 }, waitFor, pollTick)

	winner := "alice"
	require.NoError(t, sm.End("m1", &winner, models.ReasonCompleted))
	require.Eventually(t, func() bool { return sm.ActiveCount() == 0 }, waitFor, pollTick)

	// Still readable through the store after eviction
	got, err := sm.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
}

func TestEndBeforeStartIsNoOp(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, time.Hour, time.Hour)

	ctx := context.Background()
	_, err := sm.Create(ctx, "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)

	winner := "alice"
	require.NoError(t, sm.End("m1", &winner, models.ReasonCompleted))
	time.Sleep(50 * time.Millisecond)

	got, err := sm.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, got.Status, "a match that never started cannot finish")
	assert.Nil(t, got.Result)
	assert.Equal(t, 0, rec.endedCount())
	assert.Equal(t, 0, fp.get("alice").GamesPlayed)
}

func TestDiscardTearsDownStartingMatch(t *testing.T) {
	alice := testPlayer("alice", 1000)
	bob := testPlayer("bob", 1000)
	fp := newFakePlayers(alice, bob)
	rec := &recorder{}
	sm := NewSessionManager(fp, newFakeMatchStore(), rec, 20*time.Millisecond, time.Hour)

	ctx := context.Background()
	_, err := sm.Create(ctx, "m1", matchPlayers(alice, bob), "chess")
	require.NoError(t, err)

	sm.Discard("m1")
	require.Eventually(t, func() bool { return sm.ActiveCount() == 0 }, waitFor, pollTick)

	got, err := sm.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
	require.NotNil(t, got.Result)
	assert.Nil(t, got.Result.WinnerID)
	assert.Equal(t, models.ReasonAbandoned, got.Result.Reason)

	// Past the start delay: the timer must find nothing to start, and a
	// discarded match is never announced or settled.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.startedCount())
	assert.Equal(t, 0, rec.endedCount())
	assert.Equal(t, 0, fp.get("alice").GamesPlayed)
}

func TestEndUnknownMatch(t *testing.T) {
	sm := NewSessionManager(newFakePlayers(), newFakeMatchStore(), &recorder{}, time.Hour, time.Hour)
	err := sm.End("missing", nil, models.ReasonCompleted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCreateRejectsUnknownMode(t *testing.T) {
	sm := NewSessionManager(newFakePlayers(), newFakeMatchStore(), &recorder{}, time.Hour, time.Hour)
	_, err := sm.Create(context.Background(), "m1", nil, "checkers")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
