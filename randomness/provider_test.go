package randomness

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/errs"
	"vrfGameServer/vrf"
)

func newOrchestrator(chain *contract.SimulatedChain) *vrf.Orchestrator {
	return vrf.New(chain, vrf.Options{PollInterval: time.Millisecond, PollAttempts: 3})
}

func TestLocalProvider(t *testing.T) {
	p := NewLocal()
	ctx := context.Background()

	if p.Mode() != config.ModeOffChain || p.IsVerifiable() {
		t.Error("local provider should be offchain and unverifiable")
	}
	if p.VerificationData() != nil {
		t.Error("no verification before first seed")
	}

	seed, err := p.GenerateSeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(seed) > config.MaxReplaySeed {
		t.Errorf("seed %d above safe range", seed)
	}
	v := p.VerificationData()
	if v == nil || v.Seed != seed || v.IsVerified {
		t.Errorf("unexpected verification %+v", v)
	}

	vals, err := p.GenerateMultipleRandom(ctx, 50, 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range vals {
		if x < 10 || x >= 20 {
			t.Fatalf("value %d out of range", x)
		}
	}

	if _, err := p.GenerateSecureRandom(ctx, 5, 5); err == nil {
		t.Error("empty range should fail")
	}
}

func TestSeededLocalDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _ := NewSeededLocal(42).GenerateMultipleRandom(ctx, 10, 0, 100)
	b, _ := NewSeededLocal(42).GenerateMultipleRandom(ctx, 10, 0, 100)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("seeded providers diverged: %v vs %v", a, b)
	}
}

func TestVRFProvider(t *testing.T) {
	chain := contract.NewSimulatedChain("0xabc")
	p := NewVRF(newOrchestrator(chain), Options{})
	ctx := WithRequester(context.Background(), "0xplayer")

	if p.Mode() != config.ModeOnChain || !p.IsVerifiable() {
		t.Error("vrf provider should be onchain and verifiable")
	}

	v, err := p.Draw(ctx)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !v.IsVerified || v.TransactionID == "" {
		t.Errorf("expected verified seed, got %+v", v)
	}
	if uint64(v.Seed) > config.MaxReplaySeed {
		t.Errorf("vrf seed %d above replay range", v.Seed)
	}
	if last := p.VerificationData(); last == nil || last.Seed != v.Seed {
		t.Error("VerificationData should describe the last draw")
	}
}

func TestVRFProviderMultipleUsesOneRound(t *testing.T) {
	chain := contract.NewSimulatedChain("0xabc")
	p := NewVRF(newOrchestrator(chain), Options{})
	ctx := WithRequester(context.Background(), "0xplayer")

	vals, err := p.GenerateMultipleRandom(ctx, 5, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	seed := p.VerificationData().Seed
	if !reflect.DeepEqual(vals, Expand(seed, 5, 0, 1000)) {
		t.Errorf("values %v not derived from seed %d", vals, seed)
	}
	if h, _ := chain.BlockHeight(ctx, p.VerificationData().TransactionID); h != 2 {
		t.Errorf("expected exactly one commit and one reveal, reveal at block %d", h)
	}
}

func TestExpandDeterministic(t *testing.T) {
	got := Expand(0, 3, 0, 1000)
	want := []int{0, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestVRFProviderFailure(t *testing.T) {
	chain := contract.NewSimulatedChain("0xabc")
	chain.FailSubmit[contract.ScriptCommit] = errors.New("rejected")
	ctx := WithRequester(context.Background(), "0xplayer")

	strict := NewVRF(newOrchestrator(chain), Options{})
	if _, err := strict.GenerateSeed(ctx); !errs.IsVRF(err) {
		t.Fatalf("expected VRF error, got %v", err)
	}

	lenient := NewVRF(newOrchestrator(chain), Options{AllowFallback: true})
	v, err := lenient.Draw(ctx)
	if err != nil {
		t.Fatalf("fallback Draw: %v", err)
	}
	if v.IsVerified {
		t.Error("fallback seed must be flagged unverified")
	}

	if _, err := lenient.Draw(context.Background()); !errs.IsAuth(err) {
		t.Errorf("missing requester should not fall back, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	if p, err := New(config.ModeOffChain, nil, Options{}); err != nil || p.Mode() != config.ModeOffChain {
		t.Errorf("offchain factory: %v", err)
	}
	if _, err := New(config.ModeOnChain, nil, Options{}); err == nil {
		t.Error("onchain without orchestrator should fail")
	}
	if _, err := New("hybrid", nil, Options{}); err == nil {
		t.Error("unknown mode should fail")
	}
}
