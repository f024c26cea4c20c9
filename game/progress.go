package game

import (
	"time"

	"vrfGameServer/config"
)

// NewProgress is the starting record for a player with no history.
func NewProgress(userID, gameType string) *Progress {
	return &Progress{
		UserID:          userID,
		GameType:        gameType,
		Level:           1,
		CulturalMastery: map[string]int{},
		Achievements:    []string{},
	}
}

// ApplyResult folds one round into p and returns the updated copy.
// TotalScore never decreases.
func ApplyResult(p *Progress, userID string, r GameResult, cfg GameConfig, now time.Time) *Progress {
	var next Progress
	if p == nil {
		next = *NewProgress(userID, cfg.GameType)
	} else {
		next = *p
		next.CulturalMastery = make(map[string]int, len(p.CulturalMastery)+1)
		for k, v := range p.CulturalMastery {
			next.CulturalMastery[k] = v
		}
		next.Achievements = append([]string(nil), p.Achievements...)
	}

	if r.Score > 0 {
		next.TotalScore += r.Score
	}
	next.GamesPlayed++
	next.LastPlayed = now
	next.CulturalMastery[cfg.CulturalCategory] += max(r.Score, 0) / config.PointsPerMasteryUnit
	next.Level = Level(next.TotalScore)
	next.Statistics = ApplyStatistics(next.Statistics, r)
	if next.Statistics.LongestStreak > next.BestStreak {
		next.BestStreak = next.Statistics.LongestStreak
	}
	return &next
}

// ApplyStatistics updates running aggregates with one round.
func ApplyStatistics(s Statistics, r GameResult) Statistics {
	n := float64(s.TotalGamesPlayed)
	s.AverageAccuracy = (s.AverageAccuracy*n + r.Accuracy) / (n + 1)
	s.TotalGamesPlayed++
	s.TotalTimeSpent += r.TimeSpent
	if r.Perfect {
		s.PerfectGames++
	}
	if s.FavoriteGame == "" {
		s.FavoriteGame = r.GameType
	}
	if s.FavoriteCulture == "" && r.Culture != "" {
		s.FavoriteCulture = r.Culture
	}
	return s
}

// Unlock records achievement ids on p, ignoring ids already held.
func (p *Progress) Unlock(ids ...string) {
	held := make(map[string]bool, len(p.Achievements))
	for _, id := range p.Achievements {
		held[id] = true
	}
	for _, id := range ids {
		if !held[id] {
			p.Achievements = append(p.Achievements, id)
			held[id] = true
		}
	}
}

// RecordStreak raises the best-streak counters to streak when it is a new high.
func (p *Progress) RecordStreak(streak int) {
	if streak > p.BestStreak {
		p.BestStreak = streak
	}
	if streak > p.Statistics.LongestStreak {
		p.Statistics.LongestStreak = streak
	}
}
