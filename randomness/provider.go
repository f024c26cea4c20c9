// Package randomness supplies round seeds from either a local CSPRNG or the
// VRF commit-reveal orchestrator behind one interface.
package randomness

import (
	"context"
	"fmt"

	"vrfGameServer/config"
	"vrfGameServer/game"
	"vrfGameServer/vrf"
)

// Provider is the single source of seeds for game rounds.
type Provider interface {
	GenerateSeed(ctx context.Context) (game.Seed, error)
	GenerateSecureRandom(ctx context.Context, min, max int) (int, error)
	GenerateMultipleRandom(ctx context.Context, count, min, max int) ([]int, error)
	IsVerifiable() bool
	Mode() string
	// VerificationData describes the most recent seed, or nil before the first.
	VerificationData() *game.Verification
	// Draw returns a seed together with its verification snapshot. Concurrent
	// rounds should use Draw rather than GenerateSeed + VerificationData.
	Draw(ctx context.Context) (game.Verification, error)
}

type requesterKey struct{}

// WithRequester attaches the identity VRF requests are made for.
func WithRequester(ctx context.Context, requester string) context.Context {
	return context.WithValue(ctx, requesterKey{}, requester)
}

func RequesterFrom(ctx context.Context) string {
	s, _ := ctx.Value(requesterKey{}).(string)
	return s
}

type Options struct {
	// AllowFallback lets the VRF provider substitute an unverified local
	// seed when a round fails. Never set in production.
	AllowFallback bool
}

// New builds the provider for mode. Onchain mode needs an orchestrator.
func New(mode string, orch *vrf.Orchestrator, opts Options) (Provider, error) {
	switch mode {
	case config.ModeOffChain:
		return NewLocal(), nil
	case config.ModeOnChain:
		if orch == nil {
			return nil, fmt.Errorf("onchain randomness requires a VRF orchestrator")
		}
		return NewVRF(orch, opts), nil
	default:
		return nil, fmt.Errorf("unknown randomness mode %q", mode)
	}
}

func checkRange(min, max int) error {
	if max <= min {
		return fmt.Errorf("invalid range [%d, %d)", min, max)
	}
	return nil
}
