package main

import (
	"context"
	"fmt"
	"log"

	"vrfGameServer/adapter"
	"vrfGameServer/config"
	"vrfGameServer/db"
	"vrfGameServer/game"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	ctx := context.Background()

	store, err := db.InitPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to init postgres: %v", err)
	}
	defer store.Close()

	local := adapter.NewLocal(store, nil, nil)

	// Test players with various scores
	testPlayers := []struct {
		user    string
		culture string
		score   int
	}{
		{"0x1234567890123456789012345678901234567890", "classical", 1850},
		{"0xabcdef0123456789abcdef0123456789abcdef01", "griot", 1620},
		{"0x9876543210987654321098765432109876543210", "classical", 1400},
		{"0xdeadbeef00000000000000000000000deadbeef", "sage", 1210},
		{"0xcafebabe00000000000000000000000cafebabe", "dreamtime", 980},
		{"0xfeedface00000000000000000000000feedface", "griot", 760},
		{"0xbaadf00d00000000000000000000000baadf00d", "classical", 540},
		{"0x8badf00d00000000000000000000000000000000", "sage", 320},
	}

	fmt.Println("Seeding leaderboard with test data...")

	for _, p := range testPlayers {
		_, err := local.SubmitScore(ctx, adapter.ScoreRecord{
			ID:         "seed_" + p.user[:10],
			UserID:     p.user,
			GameType:   game.GameChaosCards,
			Culture:    p.culture,
			Score:      p.score,
			Accuracy:   100,
			Difficulty: config.DefaultBaselineDifficulty,
		})
		if err != nil {
			log.Printf("Failed to insert %s: %v", p.user[:10], err)
		} else {
			fmt.Printf("  %s... -> %d\n", p.user[:10], p.score)
		}
	}

	fmt.Println("\nDone! Testing leaderboard...")

	entries, err := local.Leaderboard(ctx, game.GameChaosCards, "", 20)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Printf("\nLeaderboard (%d entries):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  #%d %s... %d (%s)\n", e.Rank, e.UserID[:10], e.Score, e.Culture)
	}
}
