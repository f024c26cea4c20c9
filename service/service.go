// Package service runs game rounds end to end: seed, content, session,
// result submission and the bookkeeping that follows.
package service

import (
	"context"
	"log"
	"time"

	"vrfGameServer/adapter"
	"vrfGameServer/config"
	"vrfGameServer/crypto"
	"vrfGameServer/errs"
	"vrfGameServer/game"
	"vrfGameServer/randomness"
	"vrfGameServer/state"
)

type Service struct {
	rng     randomness.Provider
	adapter adapter.GameAdapter
	state   *state.ServerState
	now     func() time.Time
}

func New(rng randomness.Provider, ad adapter.GameAdapter, st *state.ServerState) *Service {
	if st == nil {
		st = state.NewServerState()
	}
	return &Service{rng: rng, adapter: ad, state: st, now: time.Now}
}

func (s *Service) Mode() string                 { return s.adapter.Mode() }
func (s *Service) State() *state.ServerState    { return s.state }
func (s *Service) Adapter() adapter.GameAdapter { return s.adapter }

// Round is a started round: its persisted session and its content.
type Round struct {
	Session            game.Session  `json:"session"`
	Sequence           game.Sequence `json:"sequence"`
	Difficulty         int           `json:"difficulty"`
	PerfectRounds      int           `json:"perfectRounds"`
	ProgressionContext string        `json:"progressionContext"`
}

/* =========================
   ROUND START
========================= */

// GenerateGameSequence obtains a seed and derives the round's content from
// it. A custom seed in cfg wins over the provider and is never verified.
// A second call for a user while one is pending fails with a session error.
func (s *Service) GenerateGameSequence(ctx context.Context, userID string, cfg game.GameConfig) (game.Sequence, error) {
	if err := s.begin(userID, "service.generate_sequence"); err != nil {
		return game.Sequence{}, err
	}
	defer s.state.Rounds.Done(userID)

	return s.generate(ctx, userID, cfg)
}

// StartGameSession generates the round's content and opens a session for it.
func (s *Service) StartGameSession(ctx context.Context, userID string, cfg game.GameConfig) (Round, error) {
	if err := s.begin(userID, "service.start_session"); err != nil {
		return Round{}, err
	}
	defer s.state.Rounds.Done(userID)

	seq, err := s.generate(ctx, userID, cfg)
	if err != nil {
		return Round{}, err
	}

	now := s.now()
	session, err := s.adapter.StartGameSession(ctx, game.Session{
		ID:               crypto.NewSessionID(now),
		UserID:           userID,
		GameType:         cfg.GameType,
		Culture:          cfg.CulturalCategory,
		MaxPossibleScore: game.MaxScore(cfg),
		ItemsCount:       len(seq.Items),
		DifficultyLevel:  game.DifficultyLevel(cfg.Difficulty),
		Mode:             s.adapter.Mode(),
		Seed:             seq.Seed,
		StartedAt:        now,
	})
	if err != nil {
		return Round{}, err
	}

	baseline := cfg.Baseline
	if baseline <= 0 {
		baseline = config.DefaultBaselineDifficulty
	}
	perfect := s.state.Streaks.Get(userID)
	s.state.Rounds.Put(state.ActiveRound{
		SessionID:    session.ID,
		UserID:       userID,
		Config:       cfg,
		Seed:         seq.Seed,
		Verification: seq.Verification,
		Difficulty:   len(seq.Items),
		Baseline:     baseline,
		StartedAt:    now,
	})

	log.Printf("🎮 Session %s started for %s (%s, %d items, seed %d)", session.ID, userID, cfg.GameType, len(seq.Items), seq.Seed)

	return Round{
		Session:            session,
		Sequence:           seq,
		Difficulty:         len(seq.Items),
		PerfectRounds:      perfect,
		ProgressionContext: game.ProgressionContext(perfect),
	}, nil
}

func (s *Service) begin(userID, op string) error {
	if userID == "" {
		return errs.New(errs.KindAuth, op, "user id required")
	}
	if !s.state.Rounds.TryBegin(userID) {
		return errs.New(errs.KindSession, op, "a round is already starting for "+userID)
	}
	return nil
}

// generate completes seed generation before any content is built.
func (s *Service) generate(ctx context.Context, userID string, cfg game.GameConfig) (game.Sequence, error) {
	var v game.Verification
	if cfg.CustomSeed != nil {
		v = game.Verification{Seed: *cfg.CustomSeed, Timestamp: s.now(), IsVerified: false}
	} else {
		var err error
		v, err = s.rng.Draw(randomness.WithRequester(ctx, userID))
		if err != nil {
			return game.Sequence{}, err
		}
	}

	return game.Sequence{
		Items:        game.BuildSequence(cfg, v.Seed),
		Seed:         v.Seed,
		Config:       cfg,
		Verification: &v,
	}, nil
}

/* =========================
   QUERIES
========================= */

func (s *Service) Leaderboard(ctx context.Context, gameType, culture string, limit int) ([]game.LeaderboardEntry, error) {
	if gameType == "" {
		gameType = config.GeneralGameType
	}
	return s.adapter.Leaderboard(ctx, gameType, culture, limit)
}

func (s *Service) UserProgress(ctx context.Context, userID, gameType string) (*game.Progress, error) {
	p, err := s.adapter.LoadProgress(ctx, userID, gameType)
	if err != nil || p != nil {
		return p, err
	}
	return game.NewProgress(userID, gameType), nil
}

func (s *Service) UserAchievements(ctx context.Context, userID string) ([]game.Achievement, error) {
	return s.adapter.Achievements(ctx, userID)
}

func (s *Service) UserStatistics(ctx context.Context, userID string) (*game.Statistics, error) {
	st, err := s.adapter.Statistics(ctx, userID)
	if err != nil || st != nil {
		return st, err
	}
	return &game.Statistics{}, nil
}

// FeatureStatus is one feature-table row with its availability here.
type FeatureStatus struct {
	adapter.Feature
	Available bool `json:"available"`
}

func (s *Service) Features() []FeatureStatus {
	out := []FeatureStatus{}
	for _, f := range adapter.Features() {
		out = append(out, FeatureStatus{Feature: f, Available: s.adapter.SupportsFeature(f.ID)})
	}
	return out
}

// NextDifficulty is the item count the user's next round should use.
func (s *Service) NextDifficulty(userID string, baseline int) int {
	if baseline <= 0 {
		baseline = config.DefaultBaselineDifficulty
	}
	return game.ProgressiveDifficulty(baseline, s.state.Streaks.Get(userID), config.DefaultMaxDifficulty)
}

// VerifyRound rebuilds a round's content from its seed and compares.
func (s *Service) VerifyRound(cfg game.GameConfig, seed game.Seed, items []game.Item) bool {
	return game.MatchesSequence(cfg, seed, items)
}
