package config

import (
	"time"
)

/* =========================
   NETWORK CONFIGURATION
========================= */

// Network describes one blockchain environment the VRF and leaderboard
// contracts can be reached on.
type Network struct {
	Name        string
	RPCURL      string
	ChainID     int64
	ExplorerURL string // printf pattern taking a transaction hash
}

const (
	NetworkMemory  = "memory"  // in-process simulated chain
	NetworkLocal   = "local"   // anvil / hardhat node
	NetworkTestnet = "testnet" // Mantle Sepolia
	NetworkMainnet = "mainnet" // Mantle
)

var Networks = map[string]Network{
	NetworkMemory: {
		Name:    NetworkMemory,
		ChainID: 1337,
	},
	NetworkLocal: {
		Name:    NetworkLocal,
		RPCURL:  "http://127.0.0.1:8545",
		ChainID: 31337,
	},
	NetworkTestnet: {
		Name:        NetworkTestnet,
		RPCURL:      "https://rpc.sepolia.mantle.xyz",
		ChainID:     5003,
		ExplorerURL: "https://sepolia.mantlescan.xyz/tx/%s",
	},
	NetworkMainnet: {
		Name:        NetworkMainnet,
		RPCURL:      "https://rpc.mantle.xyz",
		ChainID:     5000,
		ExplorerURL: "https://mantlescan.xyz/tx/%s",
	},
}

/* =========================
   CONTRACT CONFIGURATION
========================= */

const (
	// MemoryGame contract (VRF consumer + leaderboard + achievements)
	DefaultContractAddress = "0xb8404e09b36b66230000000000000000b8404e09"

	// Gas settings for user-facing transactions
	DefaultGasLimit   = 300000
	MaxGasPrice       = 20000000000 // 20 Gwei cap
	GasEstimateBuffer = 20          // percent added on top of estimates
)

/* =========================
   VRF COMMIT-REVEAL
========================= */

const (
	// Seal polling (fixed interval, bounded attempts)
	SealPollInterval = 1 * time.Second
	SealMaxAttempts  = 30

	// Sub-random derivation from one verified seed
	VRFOffsetStep   = 1337
	VRFNormalizer   = 1000000
	RequestIDPrefix = "vrf_"
)

/* =========================
   GAME MECHANICS
========================= */

const (
	// Progressive difficulty
	DefaultMaxDifficulty      = 12
	PerfectRoundsPerLevel     = 2
	DefaultBaselineDifficulty = 5

	// Scoring (Chaos Cards instantiation)
	BaseScorePool         = 800 // points for a perfect round before multipliers
	DifficultyAnchor      = 5
	DifficultyStepBonus   = 0.2
	ProgressionMultiplier = 1.5
	TimeBudgetSeconds     = 60
	MaxTimeBonus          = 200

	// Progress aggregation
	PointsPerLevel       = 1000
	PointsPerMasteryUnit = 100
	MaxScorePerItem      = 100

	// Built-in achievement thresholds
	HighScoreThreshold    = 1000
	SpeedDemonSeconds     = 30
	SpeedDemonMinAccuracy = 80
)

/* =========================
   GAME MODES
========================= */

const (
	ModeOffChain = "offchain"
	ModeOnChain  = "onchain"

	// Seeds from both providers are masked to 39 bits: seed*9301 in the LCG
	// then stays below 2^53, so float64 clients replay rounds exactly.
	MaxReplaySeed = 1<<39 - 1
)

/* =========================
   IDENTITY
========================= */

const (
	AnonymousPrefix = "anonymous_"
	SessionIDPrefix = "session_"
)

/* =========================
   STORE TABLES
========================= */

const (
	TableProgress     = "user_progress"
	TableAchievements = "achievements"
	TableScores       = "game_sessions"
	TableStatistics   = "user_statistics"
	TableSessions     = "sessions"
	TableLocalBoard   = "leaderboard_local"

	GeneralGameType = "general"
)

/* =========================
   REDIS CONFIGURATION
========================= */

const (
	// Client-local cache entries for anonymous players (30 days)
	AnonymousCacheTTL = 30 * 24 * time.Hour

	// Each record is its own key with its own TTL; the table key is a set
	// indexing the record keys.
	RedisTableKey  = "cache:%s"    // cache:{table}
	RedisRecordKey = "cache:%s:%s" // cache:{table}:{key}
)

/* =========================
   API CONFIGURATION
========================= */

const (
	ServerAddr         = "0.0.0.0:8080"
	DefaultLeaderboard = 10
	MaxLeaderboard     = 100
	RequestTimeout     = 90 * time.Second // covers a full commit-reveal round

	WSWriteDeadline = 10 * time.Second
	WSSendBuffer    = 64

	// Abandoned rounds and finished VRF requests are swept on this interval
	JanitorInterval = 1 * time.Minute
	RoundExpiry     = 30 * time.Minute
)
