package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vrfGameServer/adapter"
	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/db"
	"vrfGameServer/errs"
	"vrfGameServer/game"
	"vrfGameServer/randomness"
	"vrfGameServer/vrf"
)

func newLocalService() *Service {
	return New(randomness.NewSeededLocal(7), adapter.NewLocal(db.NewMemoryStore(), nil, nil), nil)
}

var griotCfg = game.GameConfig{
	GameType:         game.GameChaosCards,
	Difficulty:       game.DifficultyMedium,
	CulturalCategory: "griot",
	ItemCount:        6,
}

// recordingAdapter logs write calls in order.
type recordingAdapter struct {
	adapter.GameAdapter
	mu    sync.Mutex
	calls []string
}

func (r *recordingAdapter) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *recordingAdapter) SaveProgress(ctx context.Context, p *game.Progress) error {
	r.record("SaveProgress")
	return r.GameAdapter.SaveProgress(ctx, p)
}

func (r *recordingAdapter) SubmitScore(ctx context.Context, s adapter.ScoreRecord) (game.ScoreSubmission, error) {
	r.record("SubmitScore")
	return r.GameAdapter.SubmitScore(ctx, s)
}

func (r *recordingAdapter) UnlockAchievement(ctx context.Context, a game.Achievement) (game.Achievement, error) {
	r.record("UnlockAchievement")
	return r.GameAdapter.UnlockAchievement(ctx, a)
}

func (r *recordingAdapter) UpdateStatistics(ctx context.Context, userID string, st game.Statistics) error {
	r.record("UpdateStatistics")
	return r.GameAdapter.UpdateStatistics(ctx, userID, st)
}

func (r *recordingAdapter) EndGameSession(ctx context.Context, userID, sessionID string, score int) (game.Session, error) {
	r.record("EndGameSession")
	return r.GameAdapter.EndGameSession(ctx, userID, sessionID, score)
}

// unlockFails rejects every achievement unlock.
type unlockFails struct{ adapter.GameAdapter }

func (unlockFails) UnlockAchievement(ctx context.Context, a game.Achievement) (game.Achievement, error) {
	return a, errs.Wrap(errs.KindGame, "test.unlock", errors.New("icon lookup failed"))
}

// blockingProvider holds Draw until release is closed.
type blockingProvider struct {
	*randomness.Local
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Draw(ctx context.Context) (game.Verification, error) {
	close(b.entered)
	<-b.release
	return b.Local.Draw(ctx)
}

func TestGenerateGameSequenceCustomSeed(t *testing.T) {
	s := newLocalService()
	seed := game.Seed(12345)
	cfg := game.GameConfig{GameType: game.GameChaosCards, CulturalCategory: "classical", ItemCount: 3, CustomSeed: &seed}

	seq, err := s.GenerateGameSequence(context.Background(), "alice", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if seq.Seed != 12345 || seq.Verification == nil || seq.Verification.IsVerified {
		t.Errorf("custom seed not honoured or flagged verified: %+v", seq.Verification)
	}
	want := []string{"Odeon", "Virtue", "Rhetoric"}
	for i, name := range want {
		if seq.Items[i].Name != name {
			t.Errorf("item %d = %s, want %s", i, seq.Items[i].Name, name)
		}
	}
}

func TestGenerateGameSequenceUsesProvider(t *testing.T) {
	s := newLocalService()
	seq, err := s.GenerateGameSequence(context.Background(), "alice", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if seq.Verification.Seed != seq.Seed || len(seq.Items) != 6 {
		t.Errorf("unexpected sequence: seed %d, verification %+v, %d items", seq.Seed, seq.Verification, len(seq.Items))
	}
	if !game.MatchesSequence(griotCfg, seq.Seed, seq.Items) {
		t.Error("sequence cannot be rebuilt from its seed")
	}
	if _, err := s.GenerateGameSequence(context.Background(), "", griotCfg); !errs.IsAuth(err) {
		t.Errorf("empty user: %v", err)
	}
}

func TestDuplicateStartWhileInFlight(t *testing.T) {
	p := &blockingProvider{Local: randomness.NewLocal(), entered: make(chan struct{}), release: make(chan struct{})}
	s := New(p, adapter.NewLocal(db.NewMemoryStore(), nil, nil), nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.StartGameSession(context.Background(), "alice", griotCfg)
		done <- err
	}()
	<-p.entered

	if _, err := s.StartGameSession(context.Background(), "alice", griotCfg); !errs.IsSession(err) {
		t.Errorf("second start: %v", err)
	}
	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if s.State().Rounds.InFlight("alice") {
		t.Error("in-flight flag not released")
	}
}

func TestSubmitGameResult(t *testing.T) {
	ctx := context.Background()
	rec := &recordingAdapter{GameAdapter: adapter.NewLocal(db.NewMemoryStore(), nil, nil)}
	s := New(randomness.NewSeededLocal(7), rec, nil)

	round, err := s.StartGameSession(ctx, "alice", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if round.Session.MaxPossibleScore != game.MaxScore(griotCfg) || round.Session.Mode != config.ModeOffChain {
		t.Errorf("session = %+v", round.Session)
	}

	res, err := s.SubmitGameResult(ctx, "alice", round.Session.ID, game.GameResult{Score: 1500, Accuracy: 100, TimeSpent: 20}, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StepErrors) != 0 {
		t.Fatalf("step errors: %+v", res.StepErrors)
	}
	if !res.NewRecord || res.Submission == nil || !res.Submission.Success {
		t.Errorf("score not recorded: %+v", res)
	}
	if len(res.Achievements) != 3 {
		t.Errorf("achievements = %+v", res.Achievements)
	}
	if res.Session == nil || res.Session.EndedAt == nil || res.Session.FinalScore != 1500 {
		t.Errorf("session not closed: %+v", res.Session)
	}
	if res.Progress.TotalScore != 1500 || len(res.Progress.Achievements) != 3 {
		t.Errorf("progress = %+v", res.Progress)
	}
	if res.PerfectRounds != 1 || res.Verification == nil || res.Result.VRFSeed == nil || *res.Result.VRFSeed != round.Sequence.Seed {
		t.Errorf("round bookkeeping = %+v", res)
	}

	want := []string{"SaveProgress", "SubmitScore", "UnlockAchievement", "UnlockAchievement", "UnlockAchievement", "UpdateStatistics", "EndGameSession"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, rec.calls[i], want[i])
		}
	}

	if _, err := s.SubmitGameResult(ctx, "alice", round.Session.ID, game.GameResult{Score: 1}, griotCfg); !errs.IsSession(err) {
		t.Errorf("second submit: %v", err)
	}

	achs, _ := s.UserAchievements(ctx, "alice")
	if len(achs) != 3 {
		t.Errorf("stored achievements = %d", len(achs))
	}
	stats, _ := s.UserStatistics(ctx, "alice")
	if stats.TotalGamesPlayed != 1 || stats.PerfectGames != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSubmitGameResultSessionChecks(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()

	if _, err := s.SubmitGameResult(ctx, "alice", "session_missing", game.GameResult{}, griotCfg); !errs.IsSession(err) {
		t.Errorf("unknown session: %v", err)
	}
	round, err := s.StartGameSession(ctx, "alice", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitGameResult(ctx, "mallory", round.Session.ID, game.GameResult{}, griotCfg); !errs.IsSession(err) {
		t.Errorf("foreign session: %v", err)
	}
	if _, err := s.SubmitGameResult(ctx, "", round.Session.ID, game.GameResult{}, griotCfg); !errs.IsAuth(err) {
		t.Errorf("missing user: %v", err)
	}
	// The owner can still submit after the rejected attempts
	if _, err := s.SubmitGameResult(ctx, "alice", round.Session.ID, game.GameResult{Score: 10}, griotCfg); err != nil {
		t.Errorf("owner submit: %v", err)
	}
}

func TestAchievementFailureDoesNotVoidRound(t *testing.T) {
	ctx := context.Background()
	s := New(randomness.NewSeededLocal(7), unlockFails{adapter.NewLocal(db.NewMemoryStore(), nil, nil)}, nil)

	round, err := s.StartGameSession(ctx, "bob", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.SubmitGameResult(ctx, "bob", round.Session.ID, game.GameResult{Score: 2000, Accuracy: 100, TimeSpent: 50}, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Failed(StepAchievements) {
		t.Error("achievement failure not reported")
	}
	if res.Failed(StepScore) || res.Submission == nil || !res.Submission.Success || !res.NewRecord {
		t.Errorf("score step affected: %+v", res)
	}
	if len(res.Achievements) != 0 || res.Session == nil {
		t.Errorf("unexpected result: %+v", res)
	}

	board, _ := s.Leaderboard(ctx, game.GameChaosCards, "griot", 10)
	if len(board) != 1 || board[0].Score != 2000 {
		t.Errorf("board = %+v", board)
	}
}

func TestAnonymousSubmitStaysLocal(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()
	guest := config.AnonymousPrefix + "42"

	round, err := s.StartGameSession(ctx, guest, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.SubmitGameResult(ctx, guest, round.Session.ID, game.GameResult{Score: 700, Accuracy: 50, TimeSpent: 60}, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StepErrors) != 0 {
		t.Fatalf("step errors: %+v", res.StepErrors)
	}
	if res.Submission.IsEligible || !res.NewRecord {
		t.Errorf("guest submission = %+v, record %v", res.Submission, res.NewRecord)
	}
	if board, _ := s.Leaderboard(ctx, game.GameChaosCards, "", 10); len(board) != 0 {
		t.Errorf("guest reached shared board: %+v", board)
	}
	if stats, _ := s.UserStatistics(ctx, guest); stats.TotalGamesPlayed != 1 {
		t.Errorf("guest statistics = %+v", stats)
	}
}

func TestNewRecordOnlyForTopScore(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()

	play := func(user string, score int) bool {
		t.Helper()
		round, err := s.StartGameSession(ctx, user, griotCfg)
		if err != nil {
			t.Fatal(err)
		}
		res, err := s.SubmitGameResult(ctx, user, round.Session.ID, game.GameResult{Score: score, Accuracy: 50, TimeSpent: 60}, griotCfg)
		if err != nil {
			t.Fatal(err)
		}
		return res.NewRecord
	}

	if !play("alice", 500) {
		t.Error("first score should be a record")
	}
	if play("bob", 300) {
		t.Error("lower score should not be a record")
	}
	if !play("bob", 900) {
		t.Error("new top score should be a record")
	}
}

func TestNextDifficultyFollowsPerfectStreak(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()
	perfect := game.GameResult{Score: 100, Accuracy: 100, TimeSpent: 60}

	for i := 0; i < 4; i++ {
		round, err := s.StartGameSession(ctx, "carol", griotCfg)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.SubmitGameResult(ctx, "carol", round.Session.ID, perfect, griotCfg); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.NextDifficulty("carol", 5); got != 7 {
		t.Errorf("NextDifficulty = %d, want 7", got)
	}

	round, _ := s.StartGameSession(ctx, "carol", griotCfg)
	res, _ := s.SubmitGameResult(ctx, "carol", round.Session.ID, game.GameResult{Score: 10, Accuracy: 40}, griotCfg)
	if res.PerfectRounds != 0 || s.NextDifficulty("carol", 5) != 5 {
		t.Errorf("streak not reset: %d", res.PerfectRounds)
	}
}

// Each round is played at the difficulty the previous result asked for.
func TestNextDifficultyWhenPlayedForward(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()
	perfect := game.GameResult{Score: 100, Accuracy: 100, TimeSpent: 60}

	want := []int{5, 6, 6, 7, 7, 8}
	cfg := griotCfg
	cfg.ItemCount = config.DefaultBaselineDifficulty
	for i, w := range want {
		round, err := s.StartGameSession(ctx, "erin", cfg)
		if err != nil {
			t.Fatal(err)
		}
		res, err := s.SubmitGameResult(ctx, "erin", round.Session.ID, perfect, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if res.NextDifficulty != w {
			t.Errorf("round %d: NextDifficulty = %d, want %d", i+1, res.NextDifficulty, w)
		}
		if got := s.NextDifficulty("erin", config.DefaultBaselineDifficulty); got != res.NextDifficulty {
			t.Errorf("round %d: service says %d, result says %d", i+1, got, res.NextDifficulty)
		}
		cfg.ItemCount = res.NextDifficulty
	}
}

func TestNextDifficultyUsesChosenBaseline(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()
	cfg := griotCfg
	cfg.Baseline = 8
	cfg.ItemCount = 8

	for i := 0; i < 2; i++ {
		round, _ := s.StartGameSession(ctx, "finn", cfg)
		res, err := s.SubmitGameResult(ctx, "finn", round.Session.ID, game.GameResult{Score: 100, Accuracy: 100}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if i == 1 && res.NextDifficulty != 9 {
			t.Errorf("NextDifficulty = %d, want 9", res.NextDifficulty)
		}
	}
}

func TestClaimedPerfectNeedsFullAccuracy(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()

	round, _ := s.StartGameSession(ctx, "gus", griotCfg)
	res, err := s.SubmitGameResult(ctx, "gus", round.Session.ID,
		game.GameResult{Score: 300, Accuracy: 50, Perfect: true, TimeSpent: 45}, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Result.Perfect || res.PerfectRounds != 0 {
		t.Errorf("half-right round counted as perfect: streak %d", res.PerfectRounds)
	}
	for _, a := range res.Achievements {
		if strings.HasPrefix(a.ID, "perfect_") {
			t.Errorf("unlocked %s on a 50%% round", a.ID)
		}
	}
	if res.Statistics == nil || res.Statistics.PerfectGames != 0 {
		t.Errorf("PerfectGames counted: %+v", res.Statistics)
	}
}

func TestScoreRound(t *testing.T) {
	ctx := context.Background()
	s := newLocalService()
	cfg := griotCfg
	cfg.ItemCount = 5

	round, _ := s.StartGameSession(ctx, "hana", cfg)

	if _, err := s.ScoreRound("hana", round.Session.ID, 6, 30, ""); !errors.Is(err, ErrCorrectOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}
	if _, err := s.ScoreRound("ivan", round.Session.ID, 5, 30, ""); !errs.IsSession(err) {
		t.Errorf("foreign session: expected session error, got %v", err)
	}

	b, err := s.ScoreRound("hana", round.Session.ID, 5, 60, "")
	if err != nil {
		t.Fatal(err)
	}
	want := game.CalculateScore(game.ScoreInput{Correct: 5, Total: 5, Difficulty: 5, Baseline: config.DefaultBaselineDifficulty, TimeSpent: 60})
	if b.Score != want.Score || b.ProgressionMultiplier != 1 {
		t.Errorf("ScoreRound = %+v, want %+v", b, want)
	}
}

func TestFeaturesOffChain(t *testing.T) {
	s := newLocalService()
	for _, f := range s.Features() {
		if f.RequiresOnChain && f.Available {
			t.Errorf("%s available off chain", f.ID)
		}
	}
}

/* =========================
   ONCHAIN
========================= */

func newChainService(chain *contract.SimulatedChain, fallback bool) *Service {
	orch := vrf.New(chain, vrf.Options{PollInterval: time.Millisecond, PollAttempts: 5, Network: config.Networks[config.NetworkTestnet]})
	rng := randomness.NewVRF(orch, randomness.Options{AllowFallback: fallback})
	ad := adapter.NewChainBacked(chain, adapter.NewLocal(db.NewMemoryStore(), nil, nil), adapter.Options{
		PollInterval: time.Millisecond,
		PollAttempts: 5,
	})
	return New(rng, ad, nil)
}

func TestOnChainRound(t *testing.T) {
	ctx := context.Background()
	s := newChainService(contract.NewSimulatedChain("0xgame"), false)

	round, err := s.StartGameSession(ctx, "0xalice", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	v := round.Sequence.Verification
	if v == nil || !v.IsVerified || v.TransactionID == "" || v.VerificationURL == "" {
		t.Fatalf("round not verified: %+v", v)
	}

	res, err := s.SubmitGameResult(ctx, "0xalice", round.Session.ID, game.GameResult{Score: 1200, Accuracy: 90, TimeSpent: 40}, griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.StepErrors) != 0 {
		t.Fatalf("step errors: %+v", res.StepErrors)
	}
	if !res.Submission.IsVerified || res.Submission.TransactionID == "" || !res.NewRecord {
		t.Errorf("submission = %+v, record %v", res.Submission, res.NewRecord)
	}
	if len(res.Achievements) != 1 || res.Achievements[0].NFTID == "" {
		t.Errorf("achievements = %+v", res.Achievements)
	}
}

func TestOnChainVRFFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0xgame")
	chain.RevertScripts[contract.ScriptReveal] = true
	s := newChainService(chain, false)

	_, err := s.StartGameSession(ctx, "0xalice", griotCfg)
	if !errs.IsVRF(err) {
		t.Fatalf("expected VRF error, got %v", err)
	}
	if s.State().Rounds.InFlight("0xalice") {
		t.Error("failed start left the guard set")
	}
}

func TestOnChainFallbackIsFlagged(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0xgame")
	chain.RevertScripts[contract.ScriptReveal] = true
	s := newChainService(chain, true)

	seq, err := s.GenerateGameSequence(ctx, "0xalice", griotCfg)
	if err != nil {
		t.Fatal(err)
	}
	if seq.Verification.IsVerified {
		t.Error("fallback seed reported as verified")
	}
}
