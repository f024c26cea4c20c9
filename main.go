package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vrfGameServer/adapter"
	"vrfGameServer/api"
	"vrfGameServer/config"
	"vrfGameServer/contract"
	"vrfGameServer/db"
	"vrfGameServer/randomness"
	"vrfGameServer/service"
	"vrfGameServer/state"
	"vrfGameServer/vrf"
	"vrfGameServer/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("🎮 Game mode: %s (network: %s)", cfg.Mode, cfg.Network)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]api.HealthChecker{}

	// Persistent store
	var store db.Store = db.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pg, err := db.InitPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("⚠️  Warning: PostgreSQL initialization failed: %v", err)
			log.Println("   Falling back to in-memory storage, data will not survive a restart")
		} else {
			defer pg.Close()
			store = pg
			health["postgres"] = pg
		}
	} else {
		log.Println("⚠️  DATABASE_URL not set, using in-memory storage")
	}

	// Anonymous player cache
	var cache db.Store
	if cfg.RedisURL != "" {
		rs, err := db.InitRedis(ctx, db.RedisOptions{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Printf("⚠️  Warning: Redis initialization failed: %v", err)
			log.Println("   Anonymous players will be kept in memory")
		} else {
			defer rs.Close()
			cache = rs
			health["redis"] = rs
		}
	}

	// Chain runtime and VRF orchestrator (onchain only)
	var (
		rt   contract.Runtime
		orch *vrf.Orchestrator
	)
	if cfg.Mode == config.ModeOnChain {
		rt, err = newRuntime(cfg)
		if err != nil {
			log.Fatalf("❌ Contract client initialization failed: %v", err)
		}
		if evm, ok := rt.(*contract.EVMRuntime); ok {
			defer evm.Close()
		}
		orch = vrf.New(rt, vrf.Options{
			PollInterval: cfg.PollInterval,
			PollAttempts: cfg.PollAttempts,
			Network:      cfg.NetworkInfo(),
		})
	}

	rng, err := randomness.New(cfg.Mode, orch, randomness.Options{AllowFallback: !cfg.Production})
	if err != nil {
		log.Fatalf("❌ Randomness provider: %v", err)
	}

	gameAdapter, err := adapter.New(cfg.Mode, adapter.Options{
		Store:        store,
		Cache:        cache,
		Chain:        rt,
		PollInterval: cfg.PollInterval,
		PollAttempts: cfg.PollAttempts,
	})
	if err != nil {
		log.Fatalf("❌ Game adapter: %v", err)
	}

	st := state.NewServerState()
	svc := service.New(rng, gameAdapter, st)

	hub := ws.NewHub(st, orch)
	go hub.Run(ctx)
	if orch != nil {
		go hub.FeedVRF(ctx)
	}
	go janitor(ctx, st, orch)

	server := api.NewServer(svc, api.Options{
		Orchestrator: orch,
		Health:       health,
		Publisher:    hub,
		WebSocket:    hub,
	})

	httpServer := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: server.Routes(),
	}

	log.Printf("🚀 Server starting on %s", cfg.ServerAddr)
	log.Println("")
	log.Println("📡 WebSocket Endpoint:")
	log.Println("   /ws - subscribe to 'vrf', 'vrf:<address>' or 'leaderboard:<gameType>'")
	log.Println("")
	log.Println("🔌 API Endpoints:")
	log.Println("   GET  /api/health - Health check")
	log.Println("   GET  /api/features - Feature availability for this mode")
	log.Println("   GET  /api/leaderboard - Top scores")
	log.Println("   POST /api/verify - Rebuild a round from its seed")
	log.Println("   POST /api/identity/anonymous - Issue an anonymous player id")
	log.Println("   POST /api/sequence - Generate a round's content")
	log.Println("   POST /api/rounds - Start a round")
	log.Println("   POST /api/rounds/:sessionId/result - Submit a round result")
	log.Println("   GET  /api/users/:userId/{progress,achievements,statistics,difficulty}")
	log.Println("   GET  /api/vrf/requests/:requestId - VRF request status")
	log.Println("   GET  /api/vrf/pending - Pending VRF requests")
	log.Println("")

	go func() {
		<-ctx.Done()
		log.Println("👋 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("❌ Server error:", err)
	}
}

// newRuntime connects to the configured network. The memory network runs an
// in-process chain, which is only useful for development.
func newRuntime(cfg *config.Config) (contract.Runtime, error) {
	if cfg.Network == config.NetworkMemory {
		log.Println("⚠️  Using the in-memory simulated chain")
		return contract.NewSimulatedChain(cfg.ContractAddress), nil
	}
	n := cfg.NetworkInfo()
	return contract.NewEVMRuntime(contract.EVMConfig{
		RPCURL:     n.RPCURL,
		ChainID:    n.ChainID,
		Address:    cfg.ContractAddress,
		PrivateKey: cfg.PrivateKey,
		ABIPath:    cfg.ABIPath,
	})
}

// janitor drops rounds nobody submitted and finished VRF requests.
func janitor(ctx context.Context, st *state.ServerState, orch *vrf.Orchestrator) {
	ticker := time.NewTicker(config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Rounds.Expire(now.Add(-config.RoundExpiry)); n > 0 {
				log.Printf("🧹 Expired %d abandoned rounds", n)
			}
			if orch != nil {
				orch.ClearCompleted()
			}
		}
	}
}
