package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/playarena/backend/internal/events"
	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/store"
)

// WSMessage is the envelope for client-to-server messages
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinQueueData struct {
	PlayerID    string             `json:"playerId"`
	GameMode    string             `json:"gameMode"`
	Preferences models.Preferences `json:"preferences"`
}

type leaveQueueData struct {
	PlayerID string `json:"playerId"`
	GameMode string `json:"gameMode"`
}

type gameActionData struct {
	GameID  string                 `json:"gameId"`
	Action  string                 `json:"action"`
	Payload map[string]interface{} `json:"payload"`
}

// PlayerDirectory is the slice of the player store the gateway reads.
type PlayerDirectory interface {
	Get(ctx context.Context, id string) (*models.Player, error)
	Touch(ctx context.Context, id string) error
}

// Queue is the slice of the queue store driven by transport events.
type Queue interface {
	Enqueue(ctx context.Context, mode string, e models.QueueEntry) error
	Dequeue(ctx context.Context, playerID, mode string) error
	DequeueBySessionTag(ctx context.Context, tag string) ([]store.RemovedEntry, error)
}

// Sessions routes in-game actions to their match.
type Sessions interface {
	HandleAction(matchID, sessionTag, action string, payload map[string]interface{})
}

// Gateway terminates client connections and translates transport events
// into core operations.
type Gateway struct {
	hub      *Hub
	players  PlayerDirectory
	queue    Queue
	sessions Sessions
	fanout   *events.Fanout
}

func NewGateway(hub *Hub, players PlayerDirectory, queue Queue, sessions Sessions, fanout *events.Fanout) *Gateway {
	return &Gateway{
		hub:      hub,
		players:  players,
		queue:    queue,
		sessions: sessions,
		fanout:   fanout,
	}
}

// HandleWebSocket upgrades the connection and assigns it a session tag.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:       conn,
		sessionTag: uuid.NewString(),
		send:       make(chan []byte, 256),
	}

	g.hub.register <- client

	go client.writePump()
	go g.readPump(client)
}

// readPump reads client messages and dispatches them until disconnect.
func (g *Gateway) readPump(client *Client) {
	defer func() {
		g.hub.unregister <- client
		client.conn.Close()
		g.cancelQueueEntries(client)
	}()

	client.conn.SetReadLimit(64 * 1024)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.sendError("invalid message")
			continue
		}

		switch msg.Type {
		case "join_queue":
			g.handleJoinQueue(client, msg.Data)
		case "leave_queue":
			g.handleLeaveQueue(client, msg.Data)
		case "game_action":
			g.handleGameAction(client, msg.Data)
		default:
			client.sendError("unknown message type")
		}
	}
}

func (g *Gateway) handleJoinQueue(client *Client, data json.RawMessage) {
	var req joinQueueData
	if err := json.Unmarshal(data, &req); err != nil {
		client.sendError("invalid join_queue payload")
		return
	}
	if !game.ValidMode(req.GameMode) {
		client.sendError("unknown game mode")
		return
	}

	ctx := context.Background()
	player, err := g.players.Get(ctx, req.PlayerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			client.sendError("player not found")
		} else {
			log.Printf("[WS] Player load failed for %s: %v", req.PlayerID, err)
			client.sendError("failed to join queue")
		}
		return
	}

	entry := models.QueueEntry{
		PlayerID:    player.ID,
		Username:    player.Username,
		Rating:      player.Rating(req.GameMode),
		SessionTag:  client.sessionTag,
		Preferences: req.Preferences,
		JoinedAt:    time.Now(),
	}

	// Ack before the enqueue commits. The entry only becomes visible to the
	// matchmaker once Enqueue returns, and the ack and any match_found share
	// the client's ordered send channel, so queue_joined always precedes a
	// match_found for this entry.
	g.hub.SendToSession(client.sessionTag, map[string]interface{}{
		"type":     "queue_joined",
		"gameMode": req.GameMode,
	})
	if err := g.queue.Enqueue(ctx, req.GameMode, entry); err != nil {
		log.Printf("[WS] Enqueue failed for %s/%s: %v", req.GameMode, player.ID, err)
		client.sendError("failed to join queue")
		return
	}
	client.playerID = player.ID

	// Presence: any write refreshes the record TTL.
	if err := g.players.Touch(ctx, player.ID); err != nil {
		log.Printf("[WS] Presence refresh failed for %s: %v", player.ID, err)
	}

	g.fanout.QueueJoined(req.GameMode, entry)
}

func (g *Gateway) handleLeaveQueue(client *Client, data json.RawMessage) {
	var req leaveQueueData
	if err := json.Unmarshal(data, &req); err != nil {
		client.sendError("invalid leave_queue payload")
		return
	}
	if !game.ValidMode(req.GameMode) {
		client.sendError("unknown game mode")
		return
	}

	if err := g.queue.Dequeue(context.Background(), req.PlayerID, req.GameMode); err != nil {
		log.Printf("[WS] Dequeue failed for %s/%s: %v", req.GameMode, req.PlayerID, err)
		client.sendError("failed to leave queue")
		return
	}
	g.fanout.QueueLeft(req.GameMode, req.PlayerID, client.sessionTag)
}

func (g *Gateway) handleGameAction(client *Client, data json.RawMessage) {
	var req gameActionData
	if err := json.Unmarshal(data, &req); err != nil {
		// Action errors are never surfaced to clients; updates arrive via
		// broadcast only.
		return
	}
	g.sessions.HandleAction(req.GameID, client.sessionTag, req.Action, req.Payload)
}

// cancelQueueEntries removes the disconnecting session's queue entries. An
// active match the player already joined is left untouched.
func (g *Gateway) cancelQueueEntries(client *Client) {
	removed, err := g.queue.DequeueBySessionTag(context.Background(), client.sessionTag)
	if err != nil {
		log.Printf("[WS] Queue cancel failed for session %s: %v", client.sessionTag, err)
	}
	for _, r := range removed {
		log.Printf("[WS] Cancelled queue entry %s/%s on disconnect", r.Mode, r.Entry.PlayerID)
		g.fanout.QueueLeft(r.Mode, r.Entry.PlayerID, "")
	}
}
