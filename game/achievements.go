package game

import (
	"fmt"
	"time"

	"vrfGameServer/config"
)

// CheckAchievements evaluates the built-in predicates for a finished round.
// Achievements the player already holds are skipped.
func CheckAchievements(p *Progress, r GameResult, cfg GameConfig, now time.Time) []Achievement {
	culture := cfg.CulturalCategory
	var out []Achievement

	if r.Perfect || r.Accuracy >= 100 {
		out = append(out, Achievement{
			ID:          fmt.Sprintf("perfect_%s_%s", culture, cfg.GameType),
			Name:        fmt.Sprintf("Perfect %s Memory", culture),
			Description: fmt.Sprintf("Achieved perfect accuracy in %s", cfg.GameType),
			Category:    "performance",
		})
	}

	if r.Score > config.HighScoreThreshold {
		out = append(out, Achievement{
			ID:          fmt.Sprintf("high_score_%s", culture),
			Name:        fmt.Sprintf("%s Master", culture),
			Description: fmt.Sprintf("Scored over %d points in %s games", config.HighScoreThreshold, culture),
			Category:    "mastery",
		})
	}

	if r.TimeSpent < config.SpeedDemonSeconds && r.Accuracy > config.SpeedDemonMinAccuracy {
		out = append(out, Achievement{
			ID:          fmt.Sprintf("speed_demon_%s", culture),
			Name:        fmt.Sprintf("%s Speed Demon", culture),
			Description: fmt.Sprintf("Completed game in under %d seconds with %d%%+ accuracy", config.SpeedDemonSeconds, config.SpeedDemonMinAccuracy),
			Category:    "speed",
		})
	}

	held := map[string]bool{}
	if p != nil {
		for _, id := range p.Achievements {
			held[id] = true
		}
	}

	fresh := out[:0]
	for _, a := range out {
		if held[a.ID] {
			continue
		}
		a.Culture = culture
		a.UnlockedAt = now
		fresh = append(fresh, a)
	}
	return fresh
}
