// Package rating implements the Elo update applied on match settlement.
package rating

import (
	"fmt"
	"math"

	"github.com/playarena/backend/internal/models"
)

// Outcome of a game from one player's perspective
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

const (
	// DefaultKFactor bounds the per-game rating swing
	DefaultKFactor = 32
	// Floor is the minimum permissible rating after any update
	Floor = 100
)

// Expected returns the expected score of player against opponent.
func Expected(player, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-player)/400))
}

// Next computes the player's new rating after a game against opponent,
// clamped to Floor. kFactor <= 0 selects DefaultKFactor.
func Next(player, opponent int, outcome Outcome, kFactor int) (int, error) {
	var actual float64
	switch outcome {
	case Win:
		actual = 1
	case Draw:
		actual = 0.5
	case Loss:
		actual = 0
	default:
		return 0, fmt.Errorf("%w: unknown outcome %q", models.ErrInvalidInput, outcome)
	}

	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}

	next := int(math.Round(float64(player) + float64(kFactor)*(actual-Expected(player, opponent))))
	if next < Floor {
		next = Floor
	}
	return next, nil
}
