package game

import "time"

// Seed is the integer that drives one round's content. A seed is consumed
// by exactly one round.
type Seed uint64

// Difficulty levels accepted by GameConfig.Difficulty.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Game types with registered content.
const (
	GameChaosCards     = "chaos_cards"
	GameMemoryPalace   = "memory_palace"
	GameSpeedChallenge = "speed_challenge"
)

type GameConfig struct {
	GameType         string `json:"gameType"`
	Difficulty       string `json:"difficulty"`
	CulturalCategory string `json:"culturalCategory"`
	ItemCount        int    `json:"itemCount"`
	CustomSeed       *Seed  `json:"customSeed,omitempty"`
	StudyTime        int    `json:"studyTime,omitempty"` // seconds
	TimeLimit        int    `json:"timeLimit,omitempty"` // seconds
	Baseline         int    `json:"baseline,omitempty"`  // player's chosen starting difficulty
}

type Item struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	CulturalContext string `json:"culturalContext"`
	Position        int    `json:"position"`
}

// Verification is an immutable snapshot of how a seed was obtained.
type Verification struct {
	Seed            Seed      `json:"seed"`
	Timestamp       time.Time `json:"timestamp"`
	IsVerified      bool      `json:"isVerified"`
	TransactionID   string    `json:"transactionId,omitempty"`
	BlockHeight     uint64    `json:"blockHeight,omitempty"`
	VerificationURL string    `json:"verificationUrl,omitempty"`
	RequestID       string    `json:"requestId,omitempty"`
}

type Sequence struct {
	Items        []Item        `json:"items"`
	Seed         Seed          `json:"seed"`
	Config       GameConfig    `json:"config"`
	Verification *Verification `json:"verificationData,omitempty"`
}

type GameResult struct {
	GameType   string  `json:"gameType"`
	Score      int     `json:"score"`
	Accuracy   float64 `json:"accuracy"` // 0-100
	Difficulty int     `json:"difficulty"`
	Technique  string  `json:"technique,omitempty"`
	TimeSpent  float64 `json:"timeSpent"` // seconds
	VRFSeed    *Seed   `json:"vrfSeed,omitempty"`
	Perfect    bool    `json:"perfect"`
	Culture    string  `json:"culture,omitempty"`
}

type Statistics struct {
	TotalGamesPlayed int     `json:"totalGamesPlayed"`
	TotalTimeSpent   float64 `json:"totalTimeSpent"`
	AverageAccuracy  float64 `json:"averageAccuracy"`
	PerfectGames     int     `json:"perfectGames"`
	LongestStreak    int     `json:"longestStreak"`
	FavoriteGame     string  `json:"favoriteGame,omitempty"`
	FavoriteCulture  string  `json:"favoriteCulture,omitempty"`
}

type Progress struct {
	UserID          string         `json:"userId"`
	GameType        string         `json:"gameType"`
	Level           int            `json:"level"`
	TotalScore      int            `json:"totalScore"`
	GamesPlayed     int            `json:"gamesPlayed"`
	BestStreak      int            `json:"bestStreak"`
	CulturalMastery map[string]int `json:"culturalMastery"`
	Achievements    []string       `json:"achievements"`
	Statistics      Statistics     `json:"statistics"`
	LastPlayed      time.Time      `json:"lastPlayed"`
}

type Achievement struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Culture       string         `json:"culture,omitempty"`
	Requirements  map[string]any `json:"requirements,omitempty"`
	Rewards       map[string]any `json:"rewards,omitempty"`
	UnlockedAt    time.Time      `json:"unlockedAt"`
	NFTID         string         `json:"nftId,omitempty"`
	TransactionID string         `json:"transactionId,omitempty"`
}

type LeaderboardEntry struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Score         int       `json:"score"`
	Rank          int       `json:"rank"`
	Culture       string    `json:"culture,omitempty"`
	GameType      string    `json:"gameType"`
	IsVerified    bool      `json:"isVerified"`
	TransactionID string    `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Session is a persisted record of one round from start to end.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	GameType         string     `json:"gameType"`
	Culture          string     `json:"culture,omitempty"`
	MaxPossibleScore int        `json:"maxPossibleScore"`
	ItemsCount       int        `json:"itemsCount"`
	DifficultyLevel  int        `json:"difficultyLevel"`
	Mode             string     `json:"mode"`
	Seed             Seed       `json:"seed"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	FinalScore       int        `json:"finalScore,omitempty"`
}

type ScoreSubmission struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	IsVerified    bool   `json:"isVerified"`
	IsEligible    bool   `json:"isEligible"`
}
