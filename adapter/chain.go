package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/errs"
	"vrfGameServer/game"
)

// ChainBacked treats the contract as the source of truth. Writes go on chain
// first and are then mirrored into the store; reads fall back to the mirror
// only when the chain read fails.
type ChainBacked struct {
	rt       contract.Runtime
	mirror   *Local
	features []string
	interval time.Duration
	attempts int
}

func NewChainBacked(rt contract.Runtime, mirror *Local, opts Options) *ChainBacked {
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.SealPollInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = config.SealMaxAttempts
	}
	features := opts.Features
	if features == nil {
		features = DefaultFeatures(config.ModeOnChain)
	}
	return &ChainBacked{
		rt:       rt,
		mirror:   mirror,
		features: features,
		interval: opts.PollInterval,
		attempts: opts.PollAttempts,
	}
}

func (c *ChainBacked) Mode() string { return config.ModeOnChain }

func (c *ChainBacked) SupportsFeature(id string) bool {
	return FeatureAvailable(c.Mode(), c.features, id)
}

func (c *ChainBacked) AvailableFeatures() []string {
	return AvailableFeatures(c.Mode(), c.features)
}

// requireIdentity rejects guests, who have no on-chain identity.
func requireIdentity(op, userID string) error {
	if userID == "" || IsAnonymous(userID) {
		return errs.New(errs.KindAuth, op, "on-chain identity required")
	}
	return nil
}

func (c *ChainBacked) transact(ctx context.Context, op string, script contract.Script, args ...any) (string, error) {
	txID, err := contract.SubmitAndWait(ctx, c.rt, c.interval, c.attempts, script, args...)
	if err != nil {
		return txID, errs.Wrap(errs.KindChain, op, err)
	}
	return txID, nil
}

func mirrorFailed(op string, err error) {
	if err != nil {
		log.Printf("⚠️ Mirror write %s failed: %v", op, err)
	}
}

func chainReadFailed(op string, err error) {
	log.Printf("⚠️ Chain read %s failed, using mirror: %v", op, err)
}

/* =========================
   PROGRESS
========================= */

func (c *ChainBacked) SaveProgress(ctx context.Context, p *game.Progress) error {
	if p == nil {
		return errs.New(errs.KindAuth, "chain.save_progress", "user id required")
	}
	if err := requireIdentity("chain.save_progress", p.UserID); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return errs.Wrap(errs.KindGame, "chain.save_progress", err)
	}
	if _, err := c.transact(ctx, "chain.save_progress", contract.ScriptSaveProgress, p.UserID, p.GameType, string(data)); err != nil {
		return err
	}

	mirrorFailed("progress", c.mirror.SaveProgress(ctx, p))
	return nil
}

func (c *ChainBacked) LoadProgress(ctx context.Context, userID, gameType string) (*game.Progress, error) {
	if err := requireIdentity("chain.load_progress", userID); err != nil {
		return nil, err
	}

	data, err := c.queryString(ctx, contract.ScriptProgressOf, userID, gameType)
	if err != nil {
		chainReadFailed("progress", err)
		return c.mirror.LoadProgress(ctx, userID, gameType)
	}
	if data == "" {
		return nil, nil
	}
	var p game.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		chainReadFailed("progress", err)
		return c.mirror.LoadProgress(ctx, userID, gameType)
	}
	return &p, nil
}

/* =========================
   ACHIEVEMENTS
========================= */

// UnlockAchievement mints the achievement as a token and records the token id.
// An achievement already minted for the user is returned as held, without a
// second mint.
func (c *ChainBacked) UnlockAchievement(ctx context.Context, a game.Achievement) (game.Achievement, error) {
	if err := requireIdentity("chain.unlock_achievement", a.UserID); err != nil {
		return a, err
	}

	minted, err := c.chainAchievements(ctx, a.UserID)
	if err != nil {
		chainReadFailed("achievements", err)
		// Without the chain view only a mirrored token proves the mint.
		if held, found, _ := c.mirror.heldAchievement(ctx, a.UserID, a.ID); found && held.NFTID != "" {
			return held, nil
		}
	}
	for _, m := range minted {
		if m.ID == a.ID {
			// Re-mirror in case an earlier mirror write was lost.
			held, err := c.mirror.UnlockAchievement(ctx, m)
			mirrorFailed("achievement", err)
			if err == nil && held.NFTID == m.NFTID {
				return held, nil
			}
			return m, nil
		}
	}

	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = time.Now()
	}
	meta, err := json.Marshal(a)
	if err != nil {
		return a, errs.Wrap(errs.KindGame, "chain.unlock_achievement", err)
	}

	txID, err := c.transact(ctx, "chain.unlock_achievement", contract.ScriptMintAchievement, a.UserID, a.ID, string(meta))
	if err != nil {
		return a, err
	}
	a.TransactionID = txID

	if minted, err := c.chainAchievements(ctx, a.UserID); err == nil {
		for _, m := range minted {
			if m.ID == a.ID {
				a.NFTID = m.NFTID
			}
		}
	}

	_, err = c.mirror.UnlockAchievement(ctx, a)
	mirrorFailed("achievement", err)
	return a, nil
}

func (c *ChainBacked) Achievements(ctx context.Context, userID string) ([]game.Achievement, error) {
	if err := requireIdentity("chain.achievements", userID); err != nil {
		return nil, err
	}
	out, err := c.chainAchievements(ctx, userID)
	if err != nil {
		chainReadFailed("achievements", err)
		return c.mirror.Achievements(ctx, userID)
	}
	return out, nil
}

func (c *ChainBacked) chainAchievements(ctx context.Context, userID string) ([]game.Achievement, error) {
	res, err := c.rt.Query(ctx, contract.ScriptAchievementsOf, userID)
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("achievementsOf returned %d values", len(res))
	}
	metas, ok1 := res[0].([]string)
	ids, ok2 := res[1].([]*big.Int)
	if !ok1 || !ok2 || len(metas) != len(ids) {
		return nil, fmt.Errorf("achievementsOf returned unexpected types %T, %T", res[0], res[1])
	}

	out := make([]game.Achievement, 0, len(metas))
	for i, m := range metas {
		var a game.Achievement
		if err := json.Unmarshal([]byte(m), &a); err != nil {
			return nil, fmt.Errorf("failed to decode achievement metadata: %w", err)
		}
		a.NFTID = ids[i].String()
		out = append(out, a)
	}
	return out, nil
}

/* =========================
   SCORES
========================= */

// SubmitScore writes the score on chain. Every chain score is eligible for
// the shared leaderboard.
func (c *ChainBacked) SubmitScore(ctx context.Context, s ScoreRecord) (game.ScoreSubmission, error) {
	if err := requireIdentity("chain.submit_score", s.UserID); err != nil {
		return game.ScoreSubmission{}, err
	}
	score := big.NewInt(int64(max(s.Score, 0)))
	txID, err := c.transact(ctx, "chain.submit_score", contract.ScriptSubmitScore, s.UserID, s.GameType, score, s.Culture)
	if err != nil {
		return game.ScoreSubmission{}, err
	}

	s.TransactionID = txID
	s.IsVerified = true
	_, err = c.mirror.SubmitScore(ctx, s)
	mirrorFailed("score", err)

	return game.ScoreSubmission{
		Success:       true,
		TransactionID: txID,
		IsVerified:    true,
		IsEligible:    true,
	}, nil
}

func (c *ChainBacked) Leaderboard(ctx context.Context, gameType, culture string, limit int) ([]game.LeaderboardEntry, error) {
	limit = clampLimit(limit)
	res, err := c.rt.Query(ctx, contract.ScriptTopScores, gameType, culture, big.NewInt(int64(limit)))
	if err == nil && len(res) != 2 {
		err = fmt.Errorf("topScores returned %d values", len(res))
	}
	var users []string
	var scores []*big.Int
	if err == nil {
		var ok1, ok2 bool
		users, ok1 = res[0].([]string)
		scores, ok2 = res[1].([]*big.Int)
		if !ok1 || !ok2 || len(users) != len(scores) {
			err = fmt.Errorf("topScores returned unexpected types %T, %T", res[0], res[1])
		}
	}
	if err != nil {
		chainReadFailed("leaderboard", err)
		return c.mirror.Leaderboard(ctx, gameType, culture, limit)
	}

	out := make([]game.LeaderboardEntry, len(users))
	for i := range users {
		out[i] = game.LeaderboardEntry{
			UserID:     users[i],
			Username:   users[i],
			Score:      int(scores[i].Int64()),
			Rank:       i + 1,
			Culture:    culture,
			GameType:   gameType,
			IsVerified: true,
		}
	}
	return out, nil
}

/* =========================
   SESSIONS
   The contract has no session entry points; sessions live in the store.
========================= */

func (c *ChainBacked) StartGameSession(ctx context.Context, s game.Session) (game.Session, error) {
	if err := requireIdentity("chain.start_session", s.UserID); err != nil {
		return s, err
	}
	return c.mirror.StartGameSession(ctx, s)
}

func (c *ChainBacked) EndGameSession(ctx context.Context, userID, sessionID string, finalScore int) (game.Session, error) {
	if err := requireIdentity("chain.end_session", userID); err != nil {
		return game.Session{}, err
	}
	return c.mirror.EndGameSession(ctx, userID, sessionID, finalScore)
}

/* =========================
   STATISTICS
========================= */

func (c *ChainBacked) UpdateStatistics(ctx context.Context, userID string, stats game.Statistics) error {
	if err := requireIdentity("chain.update_statistics", userID); err != nil {
		return err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return errs.Wrap(errs.KindGame, "chain.update_statistics", err)
	}
	if _, err := c.transact(ctx, "chain.update_statistics", contract.ScriptSaveStats, userID, string(data)); err != nil {
		return err
	}
	mirrorFailed("statistics", c.mirror.UpdateStatistics(ctx, userID, stats))
	return nil
}

func (c *ChainBacked) Statistics(ctx context.Context, userID string) (*game.Statistics, error) {
	if err := requireIdentity("chain.statistics", userID); err != nil {
		return nil, err
	}
	data, err := c.queryString(ctx, contract.ScriptPlayerStats, userID)
	if err != nil {
		chainReadFailed("statistics", err)
		return c.mirror.Statistics(ctx, userID)
	}
	if data == "" {
		return nil, nil
	}
	var s game.Statistics
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		chainReadFailed("statistics", err)
		return c.mirror.Statistics(ctx, userID)
	}
	return &s, nil
}

func (c *ChainBacked) queryString(ctx context.Context, script contract.Script, args ...any) (string, error) {
	res, err := c.rt.Query(ctx, script, args...)
	if err != nil {
		return "", err
	}
	if len(res) != 1 {
		return "", fmt.Errorf("%s returned %d values", script, len(res))
	}
	s, ok := res[0].(string)
	if !ok {
		return "", fmt.Errorf("%s returned %T, want string", script, res[0])
	}
	return s, nil
}
