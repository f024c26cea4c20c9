package randomness

import (
	"context"
	"log"
	"sync"

	"vrfGameServer/config"
	"vrfGameServer/errs"
	"vrfGameServer/game"
	"vrfGameServer/vrf"
)

// VRF obtains every seed through one commit-reveal round.
type VRF struct {
	orch     *vrf.Orchestrator
	fallback *Local // nil unless AllowFallback

	mu   sync.Mutex
	last *game.Verification
}

func NewVRF(orch *vrf.Orchestrator, opts Options) *VRF {
	p := &VRF{orch: orch}
	if opts.AllowFallback {
		p.fallback = NewLocal()
	}
	return p
}

func (p *VRF) Mode() string       { return config.ModeOnChain }
func (p *VRF) IsVerifiable() bool { return true }

// Draw runs a commit-reveal round for the requester carried by ctx.
func (p *VRF) Draw(ctx context.Context) (game.Verification, error) {
	v, err := p.orch.RequestRandomness(ctx, RequesterFrom(ctx))
	if err != nil {
		if p.fallback == nil || errs.IsAuth(err) {
			return game.Verification{}, err
		}
		log.Printf("⚠️ VRF unavailable, using unverified local seed: %v", err)
		v, err = p.fallback.Draw(ctx)
		if err != nil {
			return game.Verification{}, err
		}
	}

	p.mu.Lock()
	p.last = &v
	p.mu.Unlock()
	return v, nil
}

func (p *VRF) GenerateSeed(ctx context.Context) (game.Seed, error) {
	v, err := p.Draw(ctx)
	return v.Seed, err
}

// GenerateSecureRandom maps one verified seed into [min, max).
func (p *VRF) GenerateSecureRandom(ctx context.Context, min, max int) (int, error) {
	if err := checkRange(min, max); err != nil {
		return 0, err
	}
	seed, err := p.GenerateSeed(ctx)
	if err != nil {
		return 0, err
	}
	return game.ScaleSeed(seed, min, max), nil
}

// GenerateMultipleRandom spends one round on count values derived from the
// same seed, so the whole sequence is fixed by that seed.
func (p *VRF) GenerateMultipleRandom(ctx context.Context, count, min, max int) ([]int, error) {
	if err := checkRange(min, max); err != nil {
		return nil, err
	}
	seed, err := p.GenerateSeed(ctx)
	if err != nil {
		return nil, err
	}
	return Expand(seed, count, min, max), nil
}

// Expand derives count values in [min, max) from base.
func Expand(base game.Seed, count, min, max int) []int {
	seeds := game.DeriveSeeds(base, count)
	out := make([]int, count)
	for i, s := range seeds {
		out[i] = game.ScaleSeed(s, min, max)
	}
	return out
}

func (p *VRF) VerificationData() *game.Verification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	v := *p.last
	return &v
}
