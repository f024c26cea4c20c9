// Package vrf drives the commit-reveal exchange that turns a locally held
// secret plus chain entropy into a verifiable seed.
package vrf

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/crypto"
	"vrfGameServer/errs"
	"vrfGameServer/game"
)

/* =========================
   REQUEST STATE MACHINE
========================= */

type State string

const (
	StateIdle               State = "idle"
	StateCommitting         State = "committing"
	StateAwaitingCommitSeal State = "awaiting_commit_seal"
	StateRevealing          State = "revealing"
	StateAwaitingRevealSeal State = "awaiting_reveal_seal"
	StateQueryingResult     State = "querying_result"
	StateFulfilled          State = "fulfilled"
	StateFailed             State = "failed"
)

var stateOrder = map[State]int{
	StateIdle:               0,
	StateCommitting:         1,
	StateAwaitingCommitSeal: 2,
	StateRevealing:          3,
	StateAwaitingRevealSeal: 4,
	StateQueryingResult:     5,
	StateFulfilled:          6,
	StateFailed:             6,
}

func (s State) Terminal() bool { return s == StateFulfilled || s == StateFailed }

type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusFailed    Status = "failed"
)

// Request is the registry's view of one commit-reveal round.
type Request struct {
	ID                  string     `json:"id"`
	Requester           string     `json:"requester"`
	Timestamp           time.Time  `json:"timestamp"`
	Status              Status     `json:"status"`
	State               State      `json:"state"`
	Seed                *game.Seed `json:"seed,omitempty"`
	CommitTransactionID string     `json:"commitTransactionId,omitempty"`
	TransactionID       string     `json:"transactionId,omitempty"`
	BlockHeight         uint64     `json:"blockHeight,omitempty"`
	Error               string     `json:"error,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type Options struct {
	PollInterval time.Duration
	PollAttempts int
	Network      config.Network
}

// Orchestrator runs commit-reveal rounds against a contract runtime and keeps
// a registry of every request it has issued.
type Orchestrator struct {
	rt       contract.Runtime
	interval time.Duration
	attempts int
	network  config.Network

	mu       sync.RWMutex
	requests map[string]*Request

	subMu  sync.Mutex
	subs   map[int]chan Request
	nextID int
}

func New(rt contract.Runtime, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.SealPollInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = config.SealMaxAttempts
	}
	return &Orchestrator{
		rt:       rt,
		interval: opts.PollInterval,
		attempts: opts.PollAttempts,
		network:  opts.Network,
		requests: make(map[string]*Request),
		subs:     make(map[int]chan Request),
	}
}

/* =========================
   COMMIT-REVEAL ROUND
========================= */

// RequestRandomness runs one full round for requester and returns the
// verified seed. A failure at any step marks the request failed; it is
// never retried here.
func (o *Orchestrator) RequestRandomness(ctx context.Context, requester string) (game.Verification, error) {
	if requester == "" {
		return game.Verification{}, errs.New(errs.KindAuth, "vrf.request", "requester identity required")
	}

	now := time.Now()
	id := crypto.NewRequestID(now)
	o.register(&Request{
		ID:        id,
		Requester: requester,
		Timestamp: now,
		Status:    StatusPending,
		State:     StateIdle,
		UpdatedAt: now,
	})
	log.Printf("🎲 VRF request %s started for %s", id, requester)

	secretHex, err := crypto.GenerateSecret()
	if err != nil {
		return game.Verification{}, o.fail(id, "secret", err)
	}
	commitment, err := crypto.Commitment(secretHex, id)
	if err != nil {
		return game.Verification{}, o.fail(id, "secret", err)
	}

	// Commit
	o.advance(id, StateCommitting, nil)
	commitTx, err := o.rt.Submit(ctx, contract.ScriptCommit, id, [32]byte(commitment))
	if err != nil {
		return game.Verification{}, o.fail(id, "commit", err)
	}
	o.advance(id, StateAwaitingCommitSeal, func(r *Request) { r.CommitTransactionID = commitTx })
	if err := contract.WaitForSeal(ctx, o.rt, commitTx, o.interval, o.attempts); err != nil {
		return game.Verification{}, o.fail(id, "commit_seal", err)
	}

	// Reveal
	o.advance(id, StateRevealing, nil)
	var secret [32]byte
	copy(secret[:], common.FromHex(secretHex))
	revealTx, err := o.rt.Submit(ctx, contract.ScriptReveal, id, secret)
	if err != nil {
		return game.Verification{}, o.fail(id, "reveal", err)
	}
	o.advance(id, StateAwaitingRevealSeal, func(r *Request) { r.TransactionID = revealTx })
	if err := contract.WaitForSeal(ctx, o.rt, revealTx, o.interval, o.attempts); err != nil {
		return game.Verification{}, o.fail(id, "reveal_seal", err)
	}

	// Result
	o.advance(id, StateQueryingResult, nil)
	seed, err := o.queryResult(ctx, id)
	if err != nil {
		return game.Verification{}, o.fail(id, "query", err)
	}

	height, err := o.rt.BlockHeight(ctx, revealTx)
	if err != nil {
		log.Printf("⚠️ Block height unavailable for %s: %v", revealTx, err)
	}

	o.advance(id, StateFulfilled, func(r *Request) {
		r.Status = StatusFulfilled
		r.Seed = &seed
		r.BlockHeight = height
	})
	log.Printf("✅ VRF request %s fulfilled at block %d", id, height)

	return game.Verification{
		Seed:            seed,
		Timestamp:       time.Now(),
		IsVerified:      true,
		TransactionID:   revealTx,
		BlockHeight:     height,
		VerificationURL: o.network.VerificationURL(revealTx),
		RequestID:       id,
	}, nil
}

var seedMask = new(big.Int).SetUint64(config.MaxReplaySeed)

func (o *Orchestrator) queryResult(ctx context.Context, id string) (game.Seed, error) {
	out, err := o.rt.Query(ctx, contract.ScriptRandomResult, id)
	if err != nil {
		return 0, err
	}
	if len(out) != 2 {
		return 0, fmt.Errorf("randomResult returned %d values", len(out))
	}
	value, ok := out[0].(*big.Int)
	fulfilled, ok2 := out[1].(bool)
	if !ok || !ok2 {
		return 0, fmt.Errorf("randomResult returned unexpected types %T, %T", out[0], out[1])
	}
	if !fulfilled {
		return 0, fmt.Errorf("random result not found for %s", id)
	}
	return game.Seed(new(big.Int).And(value, seedMask).Uint64()), nil
}

/* =========================
   REGISTRY
========================= */

func (o *Orchestrator) register(r *Request) {
	o.mu.Lock()
	o.requests[r.ID] = r
	snapshot := *r
	o.mu.Unlock()
	o.publish(snapshot)
}

// advance moves a request forward. Transitions out of a terminal state or
// backwards are ignored, so status only ever moves forward.
func (o *Orchestrator) advance(id string, to State, mutate func(*Request)) {
	o.mu.Lock()
	r, ok := o.requests[id]
	if !ok || r.State.Terminal() || stateOrder[to] <= stateOrder[r.State] {
		o.mu.Unlock()
		return
	}
	r.State = to
	r.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(r)
	}
	snapshot := *r
	o.mu.Unlock()
	o.publish(snapshot)
}

func (o *Orchestrator) fail(id, step string, err error) error {
	o.advance(id, StateFailed, func(r *Request) {
		r.Status = StatusFailed
		r.Error = err.Error()
	})
	log.Printf("❌ VRF request %s failed at %s: %v", id, step, err)
	return errs.Wrapf(errs.KindVRF, "vrf."+step, err, "request %s", id)
}

// Request returns a snapshot of one request.
func (o *Orchestrator) Request(id string) (Request, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.requests[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}

// PendingRequests lists the requester's unfinished requests, oldest first.
func (o *Orchestrator) PendingRequests(requester string) []Request {
	o.mu.RLock()
	out := []Request{}
	for _, r := range o.requests {
		if r.Requester == requester && r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ClearCompleted drops fulfilled and failed requests and returns how many
// were removed.
func (o *Orchestrator) ClearCompleted() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, r := range o.requests {
		if r.Status != StatusPending {
			delete(o.requests, id)
			n++
		}
	}
	return n
}

/* =========================
   STATUS OBSERVERS
========================= */

// Subscribe returns a channel receiving a snapshot on every transition.
// Slow subscribers miss updates instead of blocking the round.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Request, func()) {
	ch := make(chan Request, buffer)
	o.subMu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	o.subMu.Unlock()

	return ch, func() {
		o.subMu.Lock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
		o.subMu.Unlock()
	}
}

func (o *Orchestrator) publish(r Request) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
