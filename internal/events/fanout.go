// Package events is the fan-out layer: it translates core events into
// transport sends addressed by session tag and into bus publishes.
package events

import (
	"log"
	"time"

	"github.com/playarena/backend/internal/bus"
	"github.com/playarena/backend/internal/models"
)

// Routing keys published to the bus exchanges.
const (
	KeyQueueJoin     = "matchmaking.queue.join"
	KeyQueueLeave    = "matchmaking.queue.leave"
	KeyMatchCreated  = "matchmaking.match.created"
	KeyGameStarted   = "game.started"
	KeyGameEnded     = "game.ended"
	KeyRatingUpdated = "player.rating.updated"
)

// Sender delivers messages to connected clients by session tag.
type Sender interface {
	SendToSession(tag string, message interface{})
	SendToSessions(tags []string, message interface{})
}

// Bus publishes to the out-of-process event bus.
type Bus interface {
	Publish(exchange, key string, v interface{}) error
}

// Fanout implements game.Notifier over a hub and a bus publisher. A nil bus
// disables out-of-process publishing (used in tests).
type Fanout struct {
	hub Sender
	bus Bus
}

func NewFanout(hub Sender, b Bus) *Fanout {
	return &Fanout{hub: hub, bus: b}
}

// QueueJoined publishes the join event. The transport ack is sent by the
// gateway before the enqueue commits, not here, so it can never trail a
// match_found for the same entry.
func (f *Fanout) QueueJoined(mode string, e models.QueueEntry) {
	f.publish(bus.ExchangeMatchmaking, KeyQueueJoin, map[string]interface{}{
		"playerId":  e.PlayerID,
		"gameMode":  mode,
		"rating":    e.Rating,
		"timestamp": time.Now().UnixMilli(),
	})
}

// QueueLeft acks the leaving client (when still connected) and publishes the
// leave event. tag is empty for disconnect-driven cancellations.
func (f *Fanout) QueueLeft(mode, playerID, tag string) {
	if tag != "" {
		f.hub.SendToSession(tag, map[string]interface{}{
			"type":     "queue_left",
			"gameMode": mode,
		})
	}
	f.publish(bus.ExchangeMatchmaking, KeyQueueLeave, map[string]interface{}{
		"playerId":  playerID,
		"gameMode":  mode,
		"timestamp": time.Now().UnixMilli(),
	})
}

// MatchFound notifies every participant and publishes the created match.
func (f *Fanout) MatchFound(m *models.Match) {
	players := make([]map[string]interface{}, len(m.Players))
	for i, p := range m.Players {
		players[i] = map[string]interface{}{
			"id":       p.ID,
			"username": p.Username,
			"rating":   p.Rating,
		}
	}
	f.hub.SendToSessions(m.SessionTags(), map[string]interface{}{
		"type":     "match_found",
		"gameId":   m.ID,
		"gameMode": m.Mode,
		"players":  players,
	})
	f.publish(bus.ExchangeMatchmaking, KeyMatchCreated, m)
}

func (f *Fanout) GameStarted(m *models.Match) {
	f.hub.SendToSessions(m.SessionTags(), map[string]interface{}{
		"type":      "game_started",
		"gameId":    m.ID,
		"gameMode":  m.Mode,
		"timestamp": time.Now().UnixMilli(),
	})
	f.publish(bus.ExchangeGameEvents, KeyGameStarted, m)
}

// GameUpdate relays a mid-flight update to all participants. These stay on
// the transport; no bus routing key exists for them.
func (f *Fanout) GameUpdate(m *models.Match, payload map[string]interface{}) {
	f.hub.SendToSessions(m.SessionTags(), payload)
}

func (f *Fanout) GameEnded(m *models.Match) {
	msg := map[string]interface{}{
		"type":      "game_ended",
		"gameId":    m.ID,
		"gameMode":  m.Mode,
		"timestamp": time.Now().UnixMilli(),
	}
	if m.Result != nil {
		msg["winnerId"] = m.Result.WinnerID
		msg["reason"] = m.Result.Reason
	}
	f.hub.SendToSessions(m.SessionTags(), msg)
	f.publish(bus.ExchangeGameEvents, KeyGameEnded, m)
}

func (f *Fanout) RatingUpdated(p *models.Player, mode string) {
	f.publish(bus.ExchangeGameEvents, KeyRatingUpdated, map[string]interface{}{
		"playerId":    p.ID,
		"gameMode":    mode,
		"rating":      p.Rating(mode),
		"gamesPlayed": p.GamesPlayed,
		"timestamp":   time.Now().UnixMilli(),
	})
}

// publish is best-effort: failures are logged and swallowed.
func (f *Fanout) publish(exchange, key string, v interface{}) {
	if f.bus == nil {
		return
	}
	if err := f.bus.Publish(exchange, key, v); err != nil {
		log.Printf("[EVENTS] Publish %s failed: %v", key, err)
	}
}
