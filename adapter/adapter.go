// Package adapter persists progress, achievements, scores, sessions and
// statistics, either in the store alone (Local) or on chain with the store as
// a read cache (ChainBacked).
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/db"
	"vrfGameServer/game"
)

// GameAdapter is implemented by Local and ChainBacked only.
type GameAdapter interface {
	Mode() string
	SupportsFeature(id string) bool
	AvailableFeatures() []string

	SaveProgress(ctx context.Context, p *game.Progress) error
	// LoadProgress returns nil, nil when the user has no progress yet.
	LoadProgress(ctx context.Context, userID, gameType string) (*game.Progress, error)

	UnlockAchievement(ctx context.Context, a game.Achievement) (game.Achievement, error)
	Achievements(ctx context.Context, userID string) ([]game.Achievement, error)

	SubmitScore(ctx context.Context, s ScoreRecord) (game.ScoreSubmission, error)
	Leaderboard(ctx context.Context, gameType, culture string, limit int) ([]game.LeaderboardEntry, error)

	StartGameSession(ctx context.Context, s game.Session) (game.Session, error)
	EndGameSession(ctx context.Context, userID, sessionID string, finalScore int) (game.Session, error)

	UpdateStatistics(ctx context.Context, userID string, stats game.Statistics) error
	// Statistics returns nil, nil when nothing was recorded.
	Statistics(ctx context.Context, userID string) (*game.Statistics, error)
}

// ScoreRecord is one submitted score with the round metadata that goes with it.
type ScoreRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Username      string     `json:"username,omitempty"`
	GameType      string     `json:"gameType"`
	Culture       string     `json:"culture,omitempty"`
	Score         int        `json:"score"`
	Accuracy      float64    `json:"accuracy"`
	TimeSpent     float64    `json:"timeSpent"`
	Difficulty    int        `json:"difficulty"`
	VRFSeed       *game.Seed `json:"vrfSeed,omitempty"`
	IsVerified    bool       `json:"isVerified"`
	TransactionID string     `json:"transactionId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (r ScoreRecord) entry(rank int) game.LeaderboardEntry {
	name := r.Username
	if name == "" {
		name = r.UserID
	}
	return game.LeaderboardEntry{
		UserID:        r.UserID,
		Username:      name,
		Score:         r.Score,
		Rank:          rank,
		Culture:       r.Culture,
		GameType:      r.GameType,
		IsVerified:    r.IsVerified,
		TransactionID: r.TransactionID,
		CreatedAt:     r.CreatedAt,
	}
}

// IsAnonymous reports whether userID is a generated guest id.
func IsAnonymous(userID string) bool {
	return strings.HasPrefix(userID, config.AnonymousPrefix)
}

// Options wires an adapter to its backends. Store is required; Cache holds
// anonymous players and defaults to an in-process store.
type Options struct {
	Store        db.Store
	Cache        db.Store
	Chain        contract.Runtime // onchain only
	Features     []string         // nil means DefaultFeatures(mode)
	PollInterval time.Duration
	PollAttempts int
}

// New builds the adapter for mode.
func New(mode string, opts Options) (GameAdapter, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("adapter requires a store")
	}
	if opts.Features == nil {
		opts.Features = DefaultFeatures(mode)
	}

	switch mode {
	case config.ModeOffChain:
		return NewLocal(opts.Store, opts.Cache, opts.Features), nil
	case config.ModeOnChain:
		if opts.Chain == nil {
			return nil, fmt.Errorf("onchain adapter requires a contract runtime")
		}
		return NewChainBacked(opts.Chain, NewLocal(opts.Store, opts.Cache, opts.Features), opts), nil
	default:
		return nil, fmt.Errorf("unknown adapter mode %q", mode)
	}
}

func progressKey(userID, gameType string) string {
	return userID + "|" + gameType
}

func achievementKey(userID, achievementID string) string {
	return userID + "|" + achievementID
}
