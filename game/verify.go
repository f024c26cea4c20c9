package game

// VerifySequence rebuilds the item order for a round from its seed and config.
// Anyone holding the seed gets the same sequence, which is what makes a
// verified seed enough to audit the round.
func VerifySequence(cfg GameConfig, seed Seed) []Item {
	return BuildSequence(cfg, seed)
}

// MatchesSequence reports whether items is the sequence seed produces for cfg.
func MatchesSequence(cfg GameConfig, seed Seed, items []Item) bool {
	want := VerifySequence(cfg, seed)
	if len(want) != len(items) {
		return false
	}
	for i := range want {
		if want[i].Name != items[i].Name || want[i].Category != items[i].Category {
			return false
		}
	}
	return true
}
