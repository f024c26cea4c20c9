package state

import (
	"sync"
	"sync/atomic"
	"time"

	"vrfGameServer/game"
)

// ==============================================================================
// SERVER STATE
// ==============================================================================
//
// Owned by the service and passed down explicitly. Holds the per-user
// in-flight guard, rounds between start and submit, and perfect streaks.
//
// ==============================================================================

type ServerState struct {
	Rounds  *RoundRegistry
	Streaks *StreakState

	ServerStartTime  time.Time
	TotalConnections atomic.Int64
}

func NewServerState() *ServerState {
	return &ServerState{
		Rounds:          NewRoundRegistry(),
		Streaks:         NewStreakState(),
		ServerStartTime: time.Now(),
	}
}

// ==============================================================================
// ROUNDS
// ==============================================================================

// ActiveRound is a round that has a seed and content but no result yet.
type ActiveRound struct {
	SessionID    string             `json:"sessionId"`
	UserID       string             `json:"userId"`
	Config       game.GameConfig    `json:"config"`
	Seed         game.Seed          `json:"seed"`
	Verification *game.Verification `json:"verificationData,omitempty"`
	Difficulty   int                `json:"difficulty"` // items in the round
	Baseline     int                `json:"baseline"`
	StartedAt    time.Time          `json:"startedAt"`
}

type RoundRegistry struct {
	mu       sync.Mutex
	inFlight map[string]bool
	active   map[string]ActiveRound // by session id
}

func NewRoundRegistry() *RoundRegistry {
	return &RoundRegistry{
		inFlight: make(map[string]bool),
		active:   make(map[string]ActiveRound),
	}
}

// TryBegin sets the user's in-flight flag. It returns false when a round
// start is already pending for the user.
func (r *RoundRegistry) TryBegin(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[userID] {
		return false
	}
	r.inFlight[userID] = true
	return true
}

// Done clears the user's in-flight flag.
func (r *RoundRegistry) Done(userID string) {
	r.mu.Lock()
	delete(r.inFlight, userID)
	r.mu.Unlock()
}

func (r *RoundRegistry) InFlight(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[userID]
}

func (r *RoundRegistry) Put(round ActiveRound) {
	r.mu.Lock()
	r.active[round.SessionID] = round
	r.mu.Unlock()
}

func (r *RoundRegistry) Get(sessionID string) (ActiveRound, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.active[sessionID]
	return round, ok
}

// Take removes and returns a round, so a result is accepted once.
func (r *RoundRegistry) Take(sessionID string) (ActiveRound, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.active[sessionID]
	if ok {
		delete(r.active, sessionID)
	}
	return round, ok
}

func (r *RoundRegistry) ActiveFor(userID string) []ActiveRound {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []ActiveRound{}
	for _, round := range r.active {
		if round.UserID == userID {
			out = append(out, round)
		}
	}
	return out
}

// Expire drops rounds started before cutoff and returns how many were dropped.
func (r *RoundRegistry) Expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, round := range r.active {
		if round.StartedAt.Before(cutoff) {
			delete(r.active, id)
			n++
		}
	}
	return n
}

// ==============================================================================
// PERFECT STREAKS
// ==============================================================================

type StreakState struct {
	mu      sync.RWMutex
	perfect map[string]int
}

func NewStreakState() *StreakState {
	return &StreakState{perfect: make(map[string]int)}
}

// Record folds one round into the user's streak and returns the new value.
func (s *StreakState) Record(userID string, perfect bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := game.PerfectRounds(s.perfect[userID], perfect)
	s.perfect[userID] = n
	return n
}

func (s *StreakState) Get(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perfect[userID]
}
