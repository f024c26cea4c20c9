package adapter

import (
	"slices"

	"vrfGameServer/config"
)

type Feature struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	RequiresOnChain bool   `json:"requiresOnChain"`
}

const (
	FeatureLocalProgress        = "local_progress"
	FeatureAchievements         = "achievements"
	FeatureLeaderboards         = "leaderboards"
	FeatureNFTAchievements      = "nft_achievements"
	FeatureVerifiableRandomness = "verifiable_randomness"
	FeatureTournaments          = "tournaments"
	FeatureGlobalVerification   = "global_verification"
)

var featureTable = []Feature{
	{FeatureLocalProgress, "Local Progress", "Save progress for this player", false},
	{FeatureAchievements, "Achievements", "Unlock achievements from gameplay", false},
	{FeatureLeaderboards, "Leaderboards", "Compare scores with other players", false},
	{FeatureNFTAchievements, "NFT Achievements", "Achievements minted as on-chain tokens", true},
	{FeatureVerifiableRandomness, "Verifiable Randomness", "Round seeds from commit-reveal VRF", true},
	{FeatureTournaments, "Tournaments", "Prize tournaments settled on chain", true},
	{FeatureGlobalVerification, "Global Verification", "Scores anyone can verify on chain", true},
}

// Features returns the whole feature table.
func Features() []Feature {
	return slices.Clone(featureTable)
}

func LookupFeature(id string) (Feature, bool) {
	for _, f := range featureTable {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}

// FeatureAvailable reports whether id is usable in mode with the configured
// feature set. On-chain features are never available off chain.
func FeatureAvailable(mode string, configured []string, id string) bool {
	f, ok := LookupFeature(id)
	if !ok {
		return false
	}
	if f.RequiresOnChain && mode != config.ModeOnChain {
		return false
	}
	return slices.Contains(configured, id)
}

// AvailableFeatures filters the table, keeping table order.
func AvailableFeatures(mode string, configured []string) []string {
	out := []string{}
	for _, f := range featureTable {
		if FeatureAvailable(mode, configured, f.ID) {
			out = append(out, f.ID)
		}
	}
	return out
}

// DefaultFeatures is the configured set used when none is given: every
// feature the mode can serve.
func DefaultFeatures(mode string) []string {
	out := []string{}
	for _, f := range featureTable {
		if !f.RequiresOnChain || mode == config.ModeOnChain {
			out = append(out, f.ID)
		}
	}
	return out
}
