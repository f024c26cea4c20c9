package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vrfGameServer/config"
	"vrfGameServer/db"
	"vrfGameServer/errs"
	"vrfGameServer/game"
)

// Local serves everything from the store. Anonymous players are kept in the
// cache and never reach the shared leaderboard.
type Local struct {
	store    db.Store
	cache    db.Store
	features []string
}

func NewLocal(store, cache db.Store, features []string) *Local {
	if cache == nil {
		cache = db.NewMemoryStore()
	}
	return &Local{store: store, cache: cache, features: features}
}

func (l *Local) Mode() string { return config.ModeOffChain }

func (l *Local) SupportsFeature(id string) bool {
	return FeatureAvailable(l.Mode(), l.features, id)
}

func (l *Local) AvailableFeatures() []string {
	return AvailableFeatures(l.Mode(), l.features)
}

func (l *Local) storeFor(userID string) db.Store {
	if IsAnonymous(userID) {
		return l.cache
	}
	return l.store
}

/* =========================
   PROGRESS
========================= */

func (l *Local) SaveProgress(ctx context.Context, p *game.Progress) error {
	if p == nil || p.UserID == "" {
		return errs.New(errs.KindAuth, "adapter.save_progress", "user id required")
	}
	err := l.storeFor(p.UserID).Upsert(ctx, config.TableProgress, progressKey(p.UserID, p.GameType), p)
	return errs.Wrap(errs.KindGame, "adapter.save_progress", err)
}

func (l *Local) LoadProgress(ctx context.Context, userID, gameType string) (*game.Progress, error) {
	var p game.Progress
	found, err := l.storeFor(userID).Get(ctx, config.TableProgress, progressKey(userID, gameType), &p)
	if err != nil {
		return nil, errs.Wrap(errs.KindGame, "adapter.load_progress", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

/* =========================
   ACHIEVEMENTS
========================= */

// UnlockAchievement records a once. Unlocking an id the user already holds
// returns the stored record unchanged.
func (l *Local) UnlockAchievement(ctx context.Context, a game.Achievement) (game.Achievement, error) {
	if a.UserID == "" {
		return a, errs.New(errs.KindAuth, "adapter.unlock_achievement", "user id required")
	}
	held, found, err := l.heldAchievement(ctx, a.UserID, a.ID)
	if err != nil {
		return a, errs.Wrap(errs.KindGame, "adapter.unlock_achievement", err)
	}
	if found {
		return held, nil
	}

	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = time.Now()
	}
	if err := l.storeFor(a.UserID).Upsert(ctx, config.TableAchievements, achievementKey(a.UserID, a.ID), a); err != nil {
		return a, errs.Wrap(errs.KindGame, "adapter.unlock_achievement", err)
	}
	return a, nil
}

func (l *Local) heldAchievement(ctx context.Context, userID, id string) (game.Achievement, bool, error) {
	var held game.Achievement
	found, err := l.storeFor(userID).Get(ctx, config.TableAchievements, achievementKey(userID, id), &held)
	return held, found, err
}

func (l *Local) Achievements(ctx context.Context, userID string) ([]game.Achievement, error) {
	out, err := db.SelectInto[game.Achievement](ctx, l.storeFor(userID), config.TableAchievements,
		db.Filter{"userId": userID}, db.SelectOptions{})
	if err != nil {
		return nil, errs.Wrap(errs.KindGame, "adapter.achievements", err)
	}
	return out, nil
}

/* =========================
   SCORES
========================= */

// SubmitScore records s. Anonymous scores go to the player's local board and
// are not eligible for the shared one.
func (l *Local) SubmitScore(ctx context.Context, s ScoreRecord) (game.ScoreSubmission, error) {
	if s.UserID == "" {
		return game.ScoreSubmission{}, errs.New(errs.KindAuth, "adapter.submit_score", "user id required")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	table, eligible := config.TableScores, true
	if IsAnonymous(s.UserID) {
		table, eligible = config.TableLocalBoard, false
	}
	if err := l.storeFor(s.UserID).Upsert(ctx, table, s.ID, s); err != nil {
		return game.ScoreSubmission{}, errs.Wrap(errs.KindGame, "adapter.submit_score", err)
	}

	return game.ScoreSubmission{
		Success:       true,
		TransactionID: s.TransactionID,
		IsVerified:    s.IsVerified,
		IsEligible:    eligible,
	}, nil
}

func (l *Local) Leaderboard(ctx context.Context, gameType, culture string, limit int) ([]game.LeaderboardEntry, error) {
	filter := db.Filter{"gameType": gameType}
	if culture != "" {
		filter["culture"] = culture
	}
	rows, err := db.SelectInto[ScoreRecord](ctx, l.store, config.TableScores, filter,
		db.SelectOptions{OrderBy: "score", Desc: true, Limit: clampLimit(limit)})
	if err != nil {
		return nil, errs.Wrap(errs.KindGame, "adapter.leaderboard", err)
	}

	out := make([]game.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry(i + 1)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return config.DefaultLeaderboard
	}
	return min(limit, config.MaxLeaderboard)
}

/* =========================
   SESSIONS
========================= */

func (l *Local) StartGameSession(ctx context.Context, s game.Session) (game.Session, error) {
	if s.UserID == "" {
		return s, errs.New(errs.KindAuth, "adapter.start_session", "user id required")
	}
	if s.ID == "" {
		return s, errs.New(errs.KindSession, "adapter.start_session", "session id required")
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if err := l.storeFor(s.UserID).Upsert(ctx, config.TableSessions, s.ID, s); err != nil {
		return s, errs.Wrap(errs.KindGame, "adapter.start_session", err)
	}
	return s, nil
}

// EndGameSession closes an open session. Closing twice is a session error.
func (l *Local) EndGameSession(ctx context.Context, userID, sessionID string, finalScore int) (game.Session, error) {
	st := l.storeFor(userID)

	var s game.Session
	found, err := st.Get(ctx, config.TableSessions, sessionID, &s)
	if err != nil {
		return s, errs.Wrap(errs.KindGame, "adapter.end_session", err)
	}
	if !found || s.UserID != userID {
		return s, errs.New(errs.KindSession, "adapter.end_session", "no active session "+sessionID)
	}
	if s.EndedAt != nil {
		return s, errs.New(errs.KindSession, "adapter.end_session", "session "+sessionID+" already ended")
	}

	now := time.Now()
	s.EndedAt = &now
	s.FinalScore = finalScore
	if err := st.Upsert(ctx, config.TableSessions, s.ID, s); err != nil {
		return s, errs.Wrap(errs.KindGame, "adapter.end_session", err)
	}
	return s, nil
}

/* =========================
   STATISTICS
========================= */

func (l *Local) UpdateStatistics(ctx context.Context, userID string, stats game.Statistics) error {
	err := l.storeFor(userID).Upsert(ctx, config.TableStatistics, userID, stats)
	return errs.Wrap(errs.KindGame, "adapter.update_statistics", err)
}

func (l *Local) Statistics(ctx context.Context, userID string) (*game.Statistics, error) {
	var s game.Statistics
	found, err := l.storeFor(userID).Get(ctx, config.TableStatistics, userID, &s)
	if err != nil {
		return nil, errs.Wrap(errs.KindGame, "adapter.statistics", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

// LocalBoard lists an anonymous player's own scores, best first.
func (l *Local) LocalBoard(ctx context.Context, userID string, limit int) ([]game.LeaderboardEntry, error) {
	rows, err := db.SelectInto[ScoreRecord](ctx, l.cache, config.TableLocalBoard, db.Filter{"userId": userID},
		db.SelectOptions{OrderBy: "score", Desc: true, Limit: clampLimit(limit)})
	if err != nil {
		return nil, errs.Wrap(errs.KindGame, "adapter.local_board", err)
	}
	out := make([]game.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry(i + 1)
	}
	return out, nil
}
