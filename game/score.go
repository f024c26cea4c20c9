package game

import (
	"fmt"
	"math"

	"vrfGameServer/config"
)

// Technique bonus as a fraction of the base score.
var techniqueMultipliers = map[string]float64{
	"observation":  0.1,
	"chunking":     0.2,
	"linking":      0.3,
	"cultural":     0.3,
	"peg_system":   0.4,
	"major_system": 0.5,
	"loci":         0.4,
	"story":        0.3,
	"journey":      0.3,
	"spatial":      0.3,
}

const defaultTechniqueMultiplier = 0.1

// TechniqueMultiplier returns the bonus fraction for a memory technique.
// No technique earns nothing; an unrecognised one earns the minimum.
func TechniqueMultiplier(technique string) float64 {
	if technique == "" {
		return 0
	}
	if m, ok := techniqueMultipliers[technique]; ok {
		return m
	}
	return defaultTechniqueMultiplier
}

// Accuracy is correct/total as a rounded percentage, 0 for an empty round.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct) / float64(total) * 100)
}

type ScoreInput struct {
	Correct    int
	Total      int
	Difficulty int // item count played
	Baseline   int // the player's chosen starting difficulty
	TimeSpent  float64
	Technique  string
}

// ScoreBreakdown carries every intermediate term of a score.
type ScoreBreakdown struct {
	Score                 int      `json:"score"`
	Accuracy              float64  `json:"accuracy"`
	Base                  float64  `json:"base"`
	DifficultyMultiplier  float64  `json:"difficultyMultiplier"`
	ProgressionMultiplier float64  `json:"progressionMultiplier"`
	TimeBonus             float64  `json:"timeBonus"`
	TechniqueBonus        float64  `json:"techniqueBonus"`
	Lines                 []string `json:"breakdown"`
}

// CalculateScore scores one round:
//
//	base * difficultyMultiplier * progressionMultiplier + timeBonus + techniqueBonus
//
// where base scales accuracy onto the base pool, the difficulty multiplier
// adds 20% per level above the anchor, progression pays 1.5x above the
// player's baseline and the time bonus decays linearly over the time budget.
func CalculateScore(in ScoreInput) ScoreBreakdown {
	acc := Accuracy(in.Correct, in.Total)
	base := acc / 100 * config.BaseScorePool

	diffMult := 1 + config.DifficultyStepBonus*math.Max(0, float64(in.Difficulty-config.DifficultyAnchor))

	progMult := 1.0
	if in.Difficulty > in.Baseline {
		progMult = config.ProgressionMultiplier
	}

	timeFrac := math.Max(0, (config.TimeBudgetSeconds-in.TimeSpent)/config.TimeBudgetSeconds)
	timeBonus := timeFrac * config.MaxTimeBonus
	techBonus := base * TechniqueMultiplier(in.Technique)

	score := int(math.Round(base*diffMult*progMult + timeBonus + techBonus))

	lines := []string{
		fmt.Sprintf("Accuracy: %d%% (%d/%d)", int(acc), in.Correct, in.Total),
		fmt.Sprintf("Difficulty Level: %d (×%.1f)", in.Difficulty, diffMult),
	}
	if progMult > 1 {
		lines = append(lines, fmt.Sprintf("Progression Bonus: ×%.1f", progMult))
	}
	lines = append(lines, fmt.Sprintf("Time Bonus: %d%%", int(math.Round(timeFrac*100))))
	if techBonus > 0 {
		lines = append(lines, fmt.Sprintf("Technique Bonus: %d", int(math.Round(techBonus))))
	}
	lines = append(lines, fmt.Sprintf("Total Score: %d", score))

	return ScoreBreakdown{
		Score:                 score,
		Accuracy:              acc,
		Base:                  base,
		DifficultyMultiplier:  diffMult,
		ProgressionMultiplier: progMult,
		TimeBonus:             timeBonus,
		TechniqueBonus:        techBonus,
		Lines:                 lines,
	}
}
