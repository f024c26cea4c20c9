package state

import (
	"sync"
	"testing"
	"time"
)

func TestTryBeginGuardsConcurrentStarts(t *testing.T) {
	r := NewRoundRegistry()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryBegin("alice") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("%d starts won the guard, want 1", won)
	}
	if !r.TryBegin("bob") {
		t.Error("guard is per user")
	}
	r.Done("alice")
	if r.InFlight("alice") || !r.TryBegin("alice") {
		t.Error("Done did not release the guard")
	}
}

func TestRoundTakeOnce(t *testing.T) {
	r := NewRoundRegistry()
	r.Put(ActiveRound{SessionID: "s1", UserID: "alice", StartedAt: time.Now()})
	r.Put(ActiveRound{SessionID: "s2", UserID: "bob", StartedAt: time.Now().Add(-time.Hour)})

	if got := r.ActiveFor("alice"); len(got) != 1 {
		t.Errorf("ActiveFor = %+v", got)
	}
	if _, ok := r.Take("s1"); !ok {
		t.Fatal("Take s1 failed")
	}
	if _, ok := r.Take("s1"); ok {
		t.Error("round taken twice")
	}
	if n := r.Expire(time.Now().Add(-time.Minute)); n != 1 {
		t.Errorf("Expire = %d, want 1", n)
	}
	if _, ok := r.Get("s2"); ok {
		t.Error("expired round still present")
	}
}

func TestStreakResetsOnMiss(t *testing.T) {
	s := NewStreakState()
	s.Record("u", true)
	s.Record("u", true)
	if got := s.Record("u", true); got != 3 {
		t.Errorf("streak = %d, want 3", got)
	}
	if got := s.Record("u", false); got != 0 {
		t.Errorf("streak after miss = %d, want 0", got)
	}
	if s.Get("other") != 0 {
		t.Error("streaks leak between users")
	}
}
