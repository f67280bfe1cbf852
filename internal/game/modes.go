package game

import "github.com/playarena/backend/internal/models"

// Static mode configuration, shared by reference. Never mutated after init.
var modeConfigs = map[string]*models.ModeConfig{
	"fps": {
		MaxPlayers: 10,
		MapSize:    "1000x1000",
		GameTimeMS: 600000,
	},
	"chess": {
		MaxPlayers:  2,
		TimeControl: "10+0",
		Increment:   0,
	},
	"moba": {
		MaxPlayers: 10,
		TeamSize:   5,
		GameTimeMS: 1800000,
	},
	"rts": {
		MaxPlayers: 2,
		MapSize:    "128x128",
		Resources:  []string{"minerals", "gas"},
	},
}

// Modes returns the known game modes.
func Modes() []string {
	return []string{"fps", "chess", "moba", "rts"}
}

// ValidMode reports whether mode is a known game mode.
func ValidMode(mode string) bool {
	_, ok := modeConfigs[mode]
	return ok
}

// ConfigFor returns the shared static config for a mode, or nil.
func ConfigFor(mode string) *models.ModeConfig {
	return modeConfigs[mode]
}

// PlayersPerMatch returns the group size the matchmaker fills for a mode.
func PlayersPerMatch(mode string) int {
	if cfg, ok := modeConfigs[mode]; ok {
		return cfg.MaxPlayers
	}
	return 0
}
