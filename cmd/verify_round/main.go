// Command verify_round rebuilds a round's content from its seed so a player
// can check it against what they were shown.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"vrfGameServer/game"
)

func main() {
	seed := flag.Uint64("seed", 0, "round seed")
	culture := flag.String("culture", "classical", "cultural category")
	gameType := flag.String("game", game.GameChaosCards, "game type")
	count := flag.Int("items", 6, "item count")
	expect := flag.String("expect", "", "comma separated item names to compare against")
	asJSON := flag.Bool("json", false, "print items as JSON")
	flag.Parse()

	cfg := game.GameConfig{GameType: *gameType, CulturalCategory: *culture, ItemCount: *count}
	items := game.VerifySequence(cfg, game.Seed(*seed))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			log.Fatalf("❌ Failed to encode items: %v", err)
		}
	} else {
		fmt.Printf("🎲 Seed %d, %s/%s, %d items:\n", *seed, *gameType, *culture, len(items))
		for _, it := range items {
			fmt.Printf("  %d. %s (%s)\n", it.Position+1, it.Name, it.Category)
		}
	}

	if *expect == "" {
		return
	}
	want := strings.Split(*expect, ",")
	if len(want) != len(items) {
		fmt.Printf("❌ Expected %d items, seed produces %d\n", len(want), len(items))
		os.Exit(1)
	}
	for i, name := range want {
		if strings.TrimSpace(name) != items[i].Name {
			fmt.Printf("❌ Item %d: got %q, seed produces %q\n", i+1, strings.TrimSpace(name), items[i].Name)
			os.Exit(1)
		}
	}
	fmt.Println("✅ Sequence matches the seed")
}
