package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/db"
	"vrfGameServer/errs"
	"vrfGameServer/game"
)

// failingStore fails every write and passes reads through.
type failingStore struct{ db.Store }

func (failingStore) Upsert(context.Context, string, string, any) error {
	return errors.New("store unavailable")
}

func TestLocalNeverReportsOnChainFeatures(t *testing.T) {
	var all []string
	for _, f := range Features() {
		all = append(all, f.ID)
	}

	configs := [][]string{nil, {}, all, {FeatureVerifiableRandomness, FeatureNFTAchievements}, {FeatureLeaderboards}}
	for _, configured := range configs {
		a := NewLocal(db.NewMemoryStore(), nil, configured)
		for _, id := range a.AvailableFeatures() {
			f, _ := LookupFeature(id)
			if f.RequiresOnChain {
				t.Errorf("local adapter reports on-chain feature %s for config %v", id, configured)
			}
		}
		for _, f := range Features() {
			if f.RequiresOnChain && a.SupportsFeature(f.ID) {
				t.Errorf("SupportsFeature(%s) = true off chain", f.ID)
			}
		}
	}
}

func TestFeatureAvailable(t *testing.T) {
	tests := []struct {
		mode       string
		configured []string
		id         string
		want       bool
	}{
		{config.ModeOnChain, []string{FeatureTournaments}, FeatureTournaments, true},
		{config.ModeOnChain, []string{FeatureLeaderboards}, FeatureTournaments, false},
		{config.ModeOffChain, []string{FeatureTournaments}, FeatureTournaments, false},
		{config.ModeOffChain, []string{FeatureAchievements}, FeatureAchievements, true},
		{config.ModeOnChain, []string{"made_up"}, "made_up", false},
	}
	for _, tt := range tests {
		if got := FeatureAvailable(tt.mode, tt.configured, tt.id); got != tt.want {
			t.Errorf("FeatureAvailable(%s, %v, %s) = %v, want %v", tt.mode, tt.configured, tt.id, got, tt.want)
		}
	}

	if got := AvailableFeatures(config.ModeOnChain, DefaultFeatures(config.ModeOnChain)); len(got) != len(Features()) {
		t.Errorf("onchain defaults = %v", got)
	}
}

func TestNewAdapter(t *testing.T) {
	if _, err := New(config.ModeOffChain, Options{}); err == nil {
		t.Error("expected error without a store")
	}
	if _, err := New(config.ModeOnChain, Options{Store: db.NewMemoryStore()}); err == nil {
		t.Error("expected error without a chain")
	}
	if _, err := New("sideways", Options{Store: db.NewMemoryStore()}); err == nil {
		t.Error("expected error for unknown mode")
	}

	a, err := New(config.ModeOnChain, Options{Store: db.NewMemoryStore(), Chain: contract.NewSimulatedChain("0x1")})
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode() != config.ModeOnChain || !a.SupportsFeature(FeatureNFTAchievements) {
		t.Errorf("unexpected onchain adapter: %s %v", a.Mode(), a.AvailableFeatures())
	}
}

func TestLocalAnonymousScoresStayOffSharedBoard(t *testing.T) {
	ctx := context.Background()
	store, cache := db.NewMemoryStore(), db.NewMemoryStore()
	a := NewLocal(store, cache, DefaultFeatures(config.ModeOffChain))

	guest := config.AnonymousPrefix + "123"
	sub, err := a.SubmitScore(ctx, ScoreRecord{UserID: guest, GameType: game.GameChaosCards, Score: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Success || sub.IsEligible {
		t.Errorf("guest submission = %+v", sub)
	}
	if _, err := a.SubmitScore(ctx, ScoreRecord{UserID: "alice", GameType: game.GameChaosCards, Score: 300}); err != nil {
		t.Fatal(err)
	}

	board, err := a.Leaderboard(ctx, game.GameChaosCards, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 1 || board[0].UserID != "alice" || board[0].Rank != 1 {
		t.Errorf("shared board = %+v", board)
	}

	own, err := a.LocalBoard(ctx, guest, 10)
	if err != nil || len(own) != 1 || own[0].Score != 5000 {
		t.Errorf("guest board = %+v, %v", own, err)
	}

	// Guest statistics still update, in the cache
	if err := a.UpdateStatistics(ctx, guest, game.Statistics{TotalGamesPlayed: 1}); err != nil {
		t.Fatal(err)
	}
	st, err := a.Statistics(ctx, guest)
	if err != nil || st == nil || st.TotalGamesPlayed != 1 {
		t.Errorf("guest statistics = %+v, %v", st, err)
	}
	var leaked game.Statistics
	if found, _ := store.Get(ctx, config.TableStatistics, guest, &leaked); found {
		t.Error("guest statistics leaked into the shared store")
	}
}

func TestLocalLeaderboardOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	a := NewLocal(db.NewMemoryStore(), nil, nil)
	rows := []ScoreRecord{
		{UserID: "a", GameType: game.GameChaosCards, Culture: "griot", Score: 100},
		{UserID: "b", GameType: game.GameChaosCards, Culture: "sage", Score: 900},
		{UserID: "c", GameType: game.GameChaosCards, Culture: "griot", Score: 400},
		{UserID: "d", GameType: game.GameMemoryPalace, Culture: "griot", Score: 9999},
	}
	for _, r := range rows {
		if _, err := a.SubmitScore(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	board, err := a.Leaderboard(ctx, game.GameChaosCards, "griot", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 2 || board[0].UserID != "c" || board[1].UserID != "a" || board[1].Rank != 2 {
		t.Errorf("board = %+v", board)
	}
}

func TestLocalSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	a := NewLocal(db.NewMemoryStore(), nil, nil)

	if _, err := a.EndGameSession(ctx, "alice", "missing", 10); !errs.IsSession(err) {
		t.Errorf("ending unknown session: %v", err)
	}

	s, err := a.StartGameSession(ctx, game.Session{ID: "session_1", UserID: "alice", GameType: game.GameChaosCards})
	if err != nil {
		t.Fatal(err)
	}
	if s.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
	if _, err := a.EndGameSession(ctx, "bob", "session_1", 10); !errs.IsSession(err) {
		t.Errorf("ending another user's session: %v", err)
	}

	ended, err := a.EndGameSession(ctx, "alice", "session_1", 750)
	if err != nil {
		t.Fatal(err)
	}
	if ended.EndedAt == nil || ended.FinalScore != 750 {
		t.Errorf("ended session = %+v", ended)
	}
	if _, err := a.EndGameSession(ctx, "alice", "session_1", 750); !errs.IsSession(err) {
		t.Errorf("double end: %v", err)
	}
}

func TestLocalProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewLocal(db.NewMemoryStore(), nil, nil)

	p, err := a.LoadProgress(ctx, "alice", game.GameChaosCards)
	if err != nil || p != nil {
		t.Fatalf("fresh LoadProgress = %+v, %v", p, err)
	}

	want := game.ApplyResult(nil, "alice", game.GameResult{Score: 1200}, game.GameConfig{GameType: game.GameChaosCards, CulturalCategory: "sage"}, time.Now())
	if err := a.SaveProgress(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := a.LoadProgress(ctx, "alice", game.GameChaosCards)
	if err != nil || got == nil || got.TotalScore != 1200 || got.Level != 2 {
		t.Errorf("LoadProgress = %+v, %v", got, err)
	}
}

func TestLocalAchievementUnlockedOnce(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	a := NewLocal(store, nil, nil)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if _, err := a.UnlockAchievement(ctx, game.Achievement{ID: "perfect_griot", UserID: "u1", UnlockedAt: first}); err != nil {
		t.Fatal(err)
	}
	got, err := a.UnlockAchievement(ctx, game.Achievement{ID: "perfect_griot", UserID: "u1", UnlockedAt: later})
	if err != nil {
		t.Fatal(err)
	}
	if !got.UnlockedAt.Equal(first) {
		t.Errorf("second unlock returned UnlockedAt %v, want %v", got.UnlockedAt, first)
	}

	held, err := a.Achievements(ctx, "u1")
	if err != nil || len(held) != 1 || !held[0].UnlockedAt.Equal(first) {
		t.Errorf("stored achievements = %+v, %v", held, err)
	}
}

/* =========================
   CHAIN-BACKED
========================= */

func newChainAdapter(chain *contract.SimulatedChain, store db.Store) *ChainBacked {
	return NewChainBacked(chain, NewLocal(store, nil, nil), Options{
		PollInterval: time.Millisecond,
		PollAttempts: 5,
	})
}

func TestChainRejectsAnonymous(t *testing.T) {
	ctx := context.Background()
	a := newChainAdapter(contract.NewSimulatedChain("0x1"), db.NewMemoryStore())
	guest := config.AnonymousPrefix + "x"

	if _, err := a.SubmitScore(ctx, ScoreRecord{UserID: guest, GameType: game.GameChaosCards}); !errs.IsAuth(err) {
		t.Errorf("SubmitScore: %v", err)
	}
	if err := a.SaveProgress(ctx, game.NewProgress(guest, game.GameChaosCards)); !errs.IsAuth(err) {
		t.Errorf("SaveProgress: %v", err)
	}
	if _, err := a.StartGameSession(ctx, game.Session{ID: "s", UserID: guest}); !errs.IsAuth(err) {
		t.Errorf("StartGameSession: %v", err)
	}
}

func TestChainWritesChainThenMirror(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0x1")
	store := db.NewMemoryStore()
	a := newChainAdapter(chain, store)

	sub, err := a.SubmitScore(ctx, ScoreRecord{UserID: "0xalice", GameType: game.GameChaosCards, Culture: "griot", Score: 800})
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Success || !sub.IsVerified || !sub.IsEligible || sub.TransactionID == "" {
		t.Errorf("submission = %+v", sub)
	}

	mirrored, err := db.SelectInto[ScoreRecord](ctx, store, config.TableScores, db.Filter{"userId": "0xalice"}, db.SelectOptions{})
	if err != nil || len(mirrored) != 1 || mirrored[0].TransactionID != sub.TransactionID || !mirrored[0].IsVerified {
		t.Errorf("mirror = %+v, %v", mirrored, err)
	}

	board, err := a.Leaderboard(ctx, game.GameChaosCards, "griot", 10)
	if err != nil || len(board) != 1 || board[0].Score != 800 || !board[0].IsVerified {
		t.Errorf("chain board = %+v, %v", board, err)
	}
}

func TestChainWriteFailureSkipsMirror(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0x1")
	chain.RevertScripts[contract.ScriptSubmitScore] = true
	store := db.NewMemoryStore()
	a := newChainAdapter(chain, store)

	_, err := a.SubmitScore(ctx, ScoreRecord{UserID: "0xalice", GameType: game.GameChaosCards, Score: 800})
	if !errs.IsChain(err) {
		t.Fatalf("expected chain error, got %v", err)
	}
	var failed *contract.ErrTxFailed
	if !errors.As(err, &failed) {
		t.Errorf("cause not reachable: %v", err)
	}
	rows, _ := store.Select(ctx, config.TableScores, nil, db.SelectOptions{})
	if len(rows) != 0 {
		t.Errorf("mirror written after failed chain write: %d rows", len(rows))
	}
}

func TestChainMirrorFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	a := newChainAdapter(contract.NewSimulatedChain("0x1"), failingStore{db.NewMemoryStore()})

	if _, err := a.SubmitScore(ctx, ScoreRecord{UserID: "0xalice", GameType: game.GameChaosCards, Score: 10}); err != nil {
		t.Errorf("SubmitScore failed on mirror error: %v", err)
	}
	if err := a.SaveProgress(ctx, game.NewProgress("0xalice", game.GameChaosCards)); err != nil {
		t.Errorf("SaveProgress failed on mirror error: %v", err)
	}
}

func TestChainReadsFallBackToMirror(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0x1")
	store := db.NewMemoryStore()
	a := newChainAdapter(chain, store)

	p := game.NewProgress("0xalice", game.GameChaosCards)
	p.TotalScore = 4200
	if err := a.SaveProgress(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := a.UnlockAchievement(ctx, game.Achievement{ID: "perfect_sage_chaos_cards", UserID: "0xalice"}); err != nil {
		t.Fatal(err)
	}

	chain.FailQuery[contract.ScriptProgressOf] = errors.New("rpc down")
	chain.FailQuery[contract.ScriptAchievementsOf] = errors.New("rpc down")

	got, err := a.LoadProgress(ctx, "0xalice", game.GameChaosCards)
	if err != nil || got == nil || got.TotalScore != 4200 {
		t.Errorf("fallback progress = %+v, %v", got, err)
	}
	achs, err := a.Achievements(ctx, "0xalice")
	if err != nil || len(achs) != 1 || achs[0].NFTID == "" {
		t.Errorf("fallback achievements = %+v, %v", achs, err)
	}
}

func TestChainPrefersChainOverMirror(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0x1")
	store := db.NewMemoryStore()
	a := newChainAdapter(chain, store)

	p := game.NewProgress("0xalice", game.GameChaosCards)
	p.TotalScore = 100
	if err := a.SaveProgress(ctx, p); err != nil {
		t.Fatal(err)
	}

	// A stale mirror must not win over the chain
	stale := *p
	stale.TotalScore = 1
	_ = store.Upsert(ctx, config.TableProgress, progressKey("0xalice", game.GameChaosCards), stale)

	got, err := a.LoadProgress(ctx, "0xalice", game.GameChaosCards)
	if err != nil || got.TotalScore != 100 {
		t.Errorf("LoadProgress = %+v, %v", got, err)
	}
}

func TestChainAchievementMintedOnce(t *testing.T) {
	ctx := context.Background()
	a := newChainAdapter(contract.NewSimulatedChain("0x1"), db.NewMemoryStore())

	ach := game.Achievement{ID: "high_score_griot", UserID: "0xbob", Name: "High Score"}
	got, err := a.UnlockAchievement(ctx, ach)
	if err != nil {
		t.Fatal(err)
	}
	if got.TransactionID == "" || got.NFTID != "1" {
		t.Errorf("minted = %+v", got)
	}

	again, err := a.UnlockAchievement(ctx, ach)
	if err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	if again.NFTID != got.NFTID || again.TransactionID != got.TransactionID || !again.UnlockedAt.Equal(got.UnlockedAt) {
		t.Errorf("second unlock changed the record: %+v, first %+v", again, got)
	}
	if held, _ := a.Achievements(ctx, "0xbob"); len(held) != 1 {
		t.Errorf("chain holds %d tokens, want 1", len(held))
	}
}

func TestChainUnlockUsesMirrorWhenChainReadFails(t *testing.T) {
	ctx := context.Background()
	chain := contract.NewSimulatedChain("0x1")
	a := newChainAdapter(chain, db.NewMemoryStore())

	ach := game.Achievement{ID: "speed_demon_sage", UserID: "0xcara"}
	first, err := a.UnlockAchievement(ctx, ach)
	if err != nil {
		t.Fatal(err)
	}

	chain.FailQuery[contract.ScriptAchievementsOf] = errors.New("rpc down")
	again, err := a.UnlockAchievement(ctx, ach)
	if err != nil || again.NFTID != first.NFTID {
		t.Errorf("second unlock = %+v, %v", again, err)
	}
}

func TestChainStatisticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newChainAdapter(contract.NewSimulatedChain("0x1"), db.NewMemoryStore())

	if st, err := a.Statistics(ctx, "0xcarol"); err != nil || st != nil {
		t.Fatalf("empty statistics = %+v, %v", st, err)
	}
	want := game.Statistics{TotalGamesPlayed: 3, PerfectGames: 1, AverageAccuracy: 90}
	if err := a.UpdateStatistics(ctx, "0xcarol", want); err != nil {
		t.Fatal(err)
	}
	got, err := a.Statistics(ctx, "0xcarol")
	if err != nil || got == nil {
		t.Fatalf("Statistics = %v, %v", got, err)
	}
	a1, _ := json.Marshal(want)
	a2, _ := json.Marshal(*got)
	if string(a1) != string(a2) {
		t.Errorf("statistics = %s, want %s", a2, a1)
	}
}
