package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"vrfGameServer/adapter"
	"vrfGameServer/config"
	"vrfGameServer/errs"
	"vrfGameServer/game"
)

// Steps of SubmitGameResult, in the order they run.
const (
	StepProgress     = "progress"
	StepScore        = "score"
	StepAchievements = "achievements"
	StepStatistics   = "statistics"
	StepSession      = "session"
	StepRecord       = "record"
)

// StepError reports one failed step. The other steps still ran.
type StepError struct {
	Step    string `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// EnhancedGameResult is everything a finished round produced.
type EnhancedGameResult struct {
	Result             game.GameResult       `json:"result"`
	Submission         *game.ScoreSubmission `json:"submission,omitempty"`
	Achievements       []game.Achievement    `json:"achievements"`
	NewRecord          bool                  `json:"newRecord"`
	Progress           *game.Progress        `json:"progress,omitempty"`
	Statistics         *game.Statistics      `json:"statistics,omitempty"`
	Session            *game.Session         `json:"session,omitempty"`
	Verification       *game.Verification    `json:"verificationData,omitempty"`
	PerfectRounds      int                   `json:"perfectRounds"`
	NextDifficulty     int                   `json:"nextDifficulty"`
	ProgressionContext string                `json:"progressionContext"`
	StepErrors         []StepError           `json:"stepErrors,omitempty"`
}

// Failed reports whether step recorded an error.
func (r *EnhancedGameResult) Failed(step string) bool {
	for _, e := range r.StepErrors {
		if e.Step == step {
			return true
		}
	}
	return false
}

func (r *EnhancedGameResult) fail(step string, err error) {
	log.Printf("⚠️ Submit step %s failed: %v", step, err)
	r.StepErrors = append(r.StepErrors, StepError{
		Step:    step,
		Kind:    errs.KindOf(err).String(),
		Message: errs.UserMessage(err),
		Err:     err,
	})
}

// ErrCorrectOutOfRange is returned by ScoreRound for a count the round cannot have.
var ErrCorrectOutOfRange = errors.New("correct answers out of range")

// ScoreRound scores an active round from its correct-answer count. The item
// count and the player's baseline come from the registered round.
func (s *Service) ScoreRound(userID, sessionID string, correct int, timeSpent float64, technique string) (game.ScoreBreakdown, error) {
	if userID == "" {
		return game.ScoreBreakdown{}, errs.New(errs.KindAuth, "service.score_round", "user id required")
	}
	round, ok := s.state.Rounds.Get(sessionID)
	if !ok || round.UserID != userID {
		return game.ScoreBreakdown{}, errs.New(errs.KindSession, "service.score_round", "no active session "+sessionID)
	}
	if correct < 0 || correct > round.Difficulty {
		return game.ScoreBreakdown{}, fmt.Errorf("%w: %d of %d", ErrCorrectOutOfRange, correct, round.Difficulty)
	}
	return game.CalculateScore(game.ScoreInput{
		Correct:    correct,
		Total:      round.Difficulty,
		Difficulty: round.Difficulty,
		Baseline:   round.Baseline,
		TimeSpent:  timeSpent,
		Technique:  technique,
	}), nil
}

// SubmitGameResult closes out a round. Progress is saved before the score is
// submitted, the score before achievements are unlocked, and achievements
// before the session closes. A failing step is recorded in StepErrors and
// does not stop the steps after it.
func (s *Service) SubmitGameResult(ctx context.Context, userID, sessionID string, result game.GameResult, cfg game.GameConfig) (*EnhancedGameResult, error) {
	if userID == "" {
		return nil, errs.New(errs.KindAuth, "service.submit_result", "user id required")
	}
	round, ok := s.state.Rounds.Get(sessionID)
	if !ok {
		return nil, errs.New(errs.KindSession, "service.submit_result", "no active session "+sessionID)
	}
	if round.UserID != userID {
		return nil, errs.New(errs.KindSession, "service.submit_result", "session "+sessionID+" belongs to another user")
	}
	if _, ok := s.state.Rounds.Take(sessionID); !ok {
		return nil, errs.New(errs.KindSession, "service.submit_result", "session "+sessionID+" already submitted")
	}

	if result.GameType == "" {
		result.GameType = cfg.GameType
	}
	if result.Culture == "" {
		result.Culture = cfg.CulturalCategory
	}
	if result.VRFSeed == nil {
		seed := round.Seed
		result.VRFSeed = &seed
	}
	// Only accuracy decides a perfect round, whatever the client claims.
	result.Perfect = result.Accuracy >= 100

	now := s.now()
	out := &EnhancedGameResult{
		Result:       result,
		Achievements: []game.Achievement{},
		Verification: round.Verification,
	}

	// Progress
	prev, err := s.adapter.LoadProgress(ctx, userID, cfg.GameType)
	progressLoaded := err == nil
	if err != nil {
		out.fail(StepProgress, err)
	}
	earned := game.CheckAchievements(prev, result, cfg, now)

	streak := s.state.Streaks.Record(userID, result.Perfect)
	out.PerfectRounds = streak
	out.NextDifficulty = game.ProgressiveDifficulty(round.Baseline, streak, config.DefaultMaxDifficulty)
	out.ProgressionContext = game.ProgressionContext(streak)

	progress := game.ApplyResult(prev, userID, result, cfg, now)
	progress.RecordStreak(streak)
	for _, a := range earned {
		progress.Unlock(a.ID)
	}
	out.Progress = progress
	if progressLoaded {
		// Saving over progress that failed to load would reset it.
		if err := s.adapter.SaveProgress(ctx, progress); err != nil {
			out.fail(StepProgress, err)
		}
	}

	// Score
	scoreSaved := false
	verified := round.Verification != nil && round.Verification.IsVerified
	sub, err := s.adapter.SubmitScore(ctx, adapter.ScoreRecord{
		ID:         sessionID,
		UserID:     userID,
		GameType:   cfg.GameType,
		Culture:    cfg.CulturalCategory,
		Score:      result.Score,
		Accuracy:   result.Accuracy,
		TimeSpent:  result.TimeSpent,
		Difficulty: round.Difficulty,
		VRFSeed:    result.VRFSeed,
		IsVerified: verified,
		CreatedAt:  now,
	})
	if err != nil {
		out.fail(StepScore, err)
	} else {
		out.Submission = &sub
		scoreSaved = true
	}

	// Achievements, one call each
	for _, a := range earned {
		a.UserID = userID
		unlocked, err := s.adapter.UnlockAchievement(ctx, a)
		if err != nil {
			out.fail(StepAchievements, err)
			continue
		}
		out.Achievements = append(out.Achievements, unlocked)
	}

	// Statistics
	if stats, err := s.adapter.Statistics(ctx, userID); err != nil {
		out.fail(StepStatistics, err)
	} else {
		next := game.ApplyStatistics(derefStats(stats), result)
		if streak > next.LongestStreak {
			next.LongestStreak = streak
		}
		if err := s.adapter.UpdateStatistics(ctx, userID, next); err != nil {
			out.fail(StepStatistics, err)
		} else {
			out.Statistics = &next
		}
	}

	// Session close
	if session, err := s.adapter.EndGameSession(ctx, userID, sessionID, result.Score); err != nil {
		out.fail(StepSession, err)
	} else {
		out.Session = &session
	}

	// Record check
	if scoreSaved {
		record, err := s.isRecord(ctx, userID, cfg, result.Score)
		if err != nil {
			out.fail(StepRecord, err)
		}
		out.NewRecord = record
	}

	log.Printf("✅ Result for %s session %s: score %d, %d achievements, record=%v, %d step errors",
		userID, sessionID, result.Score, len(out.Achievements), out.NewRecord, len(out.StepErrors))
	return out, nil
}

type localBoard interface {
	LocalBoard(ctx context.Context, userID string, limit int) ([]game.LeaderboardEntry, error)
}

// isRecord reports whether score now tops the board the user plays on: the
// shared board, or an anonymous player's own board.
func (s *Service) isRecord(ctx context.Context, userID string, cfg game.GameConfig, score int) (bool, error) {
	var board []game.LeaderboardEntry
	var err error
	if lb, ok := s.adapter.(localBoard); ok && adapter.IsAnonymous(userID) {
		board, err = lb.LocalBoard(ctx, userID, 1)
	} else {
		board, err = s.adapter.Leaderboard(ctx, cfg.GameType, cfg.CulturalCategory, 1)
	}
	if err != nil {
		return false, err
	}
	if len(board) == 0 {
		return false, nil
	}
	return board[0].UserID == userID && board[0].Score <= score, nil
}

func derefStats(s *game.Statistics) game.Statistics {
	if s == nil {
		return game.Statistics{}
	}
	return *s
}
