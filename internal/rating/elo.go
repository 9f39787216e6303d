// Package rating keeps long-lived Elo ratings fed by decisive arena votes.
package rating

import "math"

// Expected is the probability that a player rated ra beats one rated rb.
func Expected(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rb-ra)/400.0))
}

// EloUpdate returns the rating update for a decisive game with factor k.
func EloUpdate(k float64) func(winner, loser float64) (float64, float64) {
	return func(winner, loser float64) (float64, float64) {
		delta := k * (1 - Expected(winner, loser))
		return winner + delta, loser - delta
	}
}
