package randomness

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"vrfGameServer/config"
	"vrfGameServer/crypto"
	"vrfGameServer/game"
)

// Local draws seeds from the OS CSPRNG. Seeds are never verified.
type Local struct {
	mu     sync.Mutex
	last   *game.Verification
	seeded *game.SeededRandom // non-nil only for NewSeededLocal
}

func NewLocal() *Local {
	return &Local{}
}

// NewSeededLocal returns a deterministic, NOT cryptographically secure
// provider for tests and offline replays.
func NewSeededLocal(seed game.Seed) *Local {
	return &Local{seeded: game.NewSeededRandom(seed)}
}

func (l *Local) Mode() string       { return config.ModeOffChain }
func (l *Local) IsVerifiable() bool { return false }

func (l *Local) Draw(ctx context.Context) (game.Verification, error) {
	if err := ctx.Err(); err != nil {
		return game.Verification{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var seed game.Seed
	if l.seeded != nil {
		seed = game.Seed(l.seeded.Intn(config.VRFNormalizer))
	} else {
		n, err := crypto.RandomUint64()
		if err != nil {
			return game.Verification{}, err
		}
		seed = game.Seed(n & config.MaxReplaySeed)
	}

	v := game.Verification{Seed: seed, Timestamp: time.Now(), IsVerified: false}
	l.last = &v
	return v, nil
}

func (l *Local) GenerateSeed(ctx context.Context) (game.Seed, error) {
	v, err := l.Draw(ctx)
	return v.Seed, err
}

func (l *Local) GenerateSecureRandom(ctx context.Context, min, max int) (int, error) {
	if err := checkRange(min, max); err != nil {
		return 0, err
	}
	if l.seeded != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		return min + l.seeded.Intn(max-min), nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return min + int(n.Int64()), nil
}

// GenerateMultipleRandom draws count independent values.
func (l *Local) GenerateMultipleRandom(ctx context.Context, count, min, max int) ([]int, error) {
	if err := checkRange(min, max); err != nil {
		return nil, err
	}
	out := make([]int, count)
	for i := range out {
		v, err := l.GenerateSecureRandom(ctx, min, max)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Local) VerificationData() *game.Verification {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return nil
	}
	v := *l.last
	return &v
}
