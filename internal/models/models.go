package models

import (
	"time"
)

// Player represents a user in the system
type Player struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	Ratings     map[string]int `json:"ratings"` // mode -> rating
	GamesPlayed int            `json:"games_played"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
	Draws       int            `json:"draws"`
	CreatedAt   time.Time      `json:"created_at"`
	LastActive  time.Time      `json:"last_active"`
}

// Rating returns the player's rating for a mode, falling back to the default.
func (p *Player) Rating(mode string) int {
	if r, ok := p.Ratings[mode]; ok {
		return r
	}
	return DefaultRating
}

// DefaultRating is the rating every player starts with in every mode.
const DefaultRating = 1000

// Preferences carried by a queue entry. Unknown keys sent by clients are
// dropped at the transport boundary; only these four are recognized.
type Preferences struct {
	Region      string `json:"region,omitempty"`
	TimeControl string `json:"time_control,omitempty"`
	MaxLatency  int    `json:"max_latency,omitempty"`
	SkillLevel  string `json:"skill_level,omitempty"`
}

// QueueEntry represents a player waiting in a mode queue
type QueueEntry struct {
	PlayerID        string      `json:"player_id"`
	Username        string      `json:"username"`
	Rating          int         `json:"rating"` // cached at enqueue time
	SessionTag      string      `json:"session_tag"`
	Preferences     Preferences `json:"preferences"`
	JoinedAt        time.Time   `json:"joined_at"`
	SearchExpansion int         `json:"search_expansion"`
}

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	StatusStarting MatchStatus = "starting"
	StatusActive   MatchStatus = "active"
	StatusFinished MatchStatus = "finished"
)

// End reasons recorded in a match result
const (
	ReasonCompleted   = "completed"
	ReasonResignation = "resignation"
	ReasonTimeout     = "timeout"
	ReasonAbandoned   = "abandoned"
)

// MatchPlayer is a participant snapshot frozen at match creation
type MatchPlayer struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Rating     int    `json:"rating"` // rating at match time
	SessionTag string `json:"-"`
}

// MatchResult records how a match ended. WinnerID is nil for a draw.
type MatchResult struct {
	WinnerID *string `json:"winner_id"`
	Reason   string  `json:"reason"`
}

// Match represents a game session
type Match struct {
	ID        string        `json:"id"`
	Mode      string        `json:"mode"`
	Players   []MatchPlayer `json:"players"`
	Status    MatchStatus   `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Result    *MatchResult  `json:"result,omitempty"`
	Config    *ModeConfig   `json:"config"`
}

// PlayerByID returns the participant with the given id, or nil.
func (m *Match) PlayerByID(id string) *MatchPlayer {
	for i := range m.Players {
		if m.Players[i].ID == id {
			return &m.Players[i]
		}
	}
	return nil
}

// PlayerBySessionTag returns the participant connected with the given
// transport session tag, or nil.
func (m *Match) PlayerBySessionTag(tag string) *MatchPlayer {
	for i := range m.Players {
		if m.Players[i].SessionTag == tag {
			return &m.Players[i]
		}
	}
	return nil
}

// SessionTags returns the transport tags of all participants, in order.
func (m *Match) SessionTags() []string {
	tags := make([]string, len(m.Players))
	for i, p := range m.Players {
		tags[i] = p.SessionTag
	}
	return tags
}

// ModeConfig is the static, immutable configuration of a game mode.
// Instances are shared by reference; callers must not mutate them.
type ModeConfig struct {
	MaxPlayers  int      `json:"max_players"`
	TeamSize    int      `json:"team_size,omitempty"`
	TimeControl string   `json:"time_control,omitempty"`
	Increment   int      `json:"increment"`
	GameTimeMS  int      `json:"game_time_ms,omitempty"` // advisory only
	MapSize     string   `json:"map_size,omitempty"`
	Resources   []string `json:"resources,omitempty"`
}

// LeaderboardEntry is one row of a leaderboard read
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	Username    string `json:"username"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
}
