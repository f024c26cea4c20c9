package game

import (
	"fmt"

	"vrfGameServer/config"
)

// ProgressiveDifficulty raises the item count by one for every two perfect
// rounds on top of the player's baseline, capped at max. A max of zero uses
// the default cap.
func ProgressiveDifficulty(baseline, perfectRounds, max int) int {
	if max <= 0 {
		max = config.DefaultMaxDifficulty
	}
	if perfectRounds < 0 {
		perfectRounds = 0
	}
	d := baseline + perfectRounds/config.PerfectRoundsPerLevel
	if d > max {
		return max
	}
	return d
}

// PerfectRounds returns the streak after a round: one more on a perfect
// round, back to zero on a miss.
func PerfectRounds(current int, perfect bool) int {
	if !perfect {
		return 0
	}
	return current + 1
}

// ProgressionContext describes how far the player is from the next
// difficulty step.
func ProgressionContext(perfectRounds int) string {
	per := config.PerfectRoundsPerLevel
	needed := per - perfectRounds%per
	switch {
	case perfectRounds > 0 && perfectRounds%per == 0:
		return "🎯 Ready for next difficulty!"
	case needed == 1:
		return "1 more perfect round to advance"
	default:
		return fmt.Sprintf("%d perfect rounds to advance", needed)
	}
}

// DifficultyLevel maps the named difficulty onto 1..3.
func DifficultyLevel(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// DifficultyMultiplier is the max-score multiplier for a named difficulty.
func DifficultyMultiplier(difficulty string) float64 {
	switch difficulty {
	case DifficultyEasy:
		return 1.0
	case DifficultyHard:
		return 2.0
	default:
		return 1.5
	}
}

// MaxScore is the best achievable score recorded with a session.
func MaxScore(cfg GameConfig) int {
	return int(float64(cfg.ItemCount*config.MaxScorePerItem) * DifficultyMultiplier(cfg.Difficulty))
}

// Level derives the player level from lifetime score.
func Level(totalScore int) int {
	return totalScore/config.PointsPerLevel + 1
}
