// Command fairness draws local seeds and checks that round content is spread
// evenly over each theme's pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"sort"

	"vrfGameServer/game"
	"vrfGameServer/randomness"
)

func main() {
	rounds := flag.Int("rounds", 1000, "rounds per batch")
	batches := flag.Int("batches", 5, "number of batches")
	culture := flag.String("culture", "classical", "theme to sample")
	flag.Parse()
	if *rounds <= 0 || *batches <= 0 {
		log.Fatal("❌ rounds and batches must be positive")
	}

	ctx := context.Background()
	rng := randomness.NewLocal()
	theme := game.ThemeFor(*culture)
	cfg := game.GameConfig{GameType: game.GameChaosCards, CulturalCategory: theme.ID, ItemCount: 1}
	expected := float64(*rounds) / float64(theme.PoolSize())

	fmt.Printf("🎲 Running %d batches of %d rounds over %d %s items...\n\n", *batches, *rounds, theme.PoolSize(), theme.ID)

	for batch := 1; batch <= *batches; batch++ {
		counts := map[string]int{}
		for i := 0; i < *rounds; i++ {
			seed, err := rng.GenerateSeed(ctx)
			if err != nil {
				log.Fatalf("❌ Seed generation failed: %v", err)
			}
			counts[game.BuildSequence(cfg, seed)[0].Name]++
		}

		// Pearson chi-square against a uniform pick of the first item.
		chi := 0.0
		for _, n := range counts {
			d := float64(n) - expected
			chi += d * d / expected
		}
		chi += float64(theme.PoolSize()-len(counts)) * expected

		names := make([]string, 0, len(counts))
		for n := range counts {
			names = append(names, n)
		}
		sort.Slice(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

		fmt.Printf("Batch %d: chi² = %.1f (df %d) | most %s %d | least %s %d\n",
			batch, chi, theme.PoolSize()-1,
			names[0], counts[names[0]], names[len(names)-1], counts[names[len(names)-1]])
	}

	// Rough 99% bound: df + 3*sqrt(2*df).
	df := float64(theme.PoolSize() - 1)
	fmt.Printf("\n✅ Batches should mostly stay under %.1f\n", df+3*math.Sqrt(2*df))
}
