// Package api exposes the game service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vrfGameServer/config"
	"vrfGameServer/errs"
	"vrfGameServer/service"
	"vrfGameServer/vrf"
)

// HealthChecker is implemented by the stores.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Publisher receives round results for live feeds.
type Publisher interface {
	Publish(channel string, message any)
}

type Options struct {
	Orchestrator *vrf.Orchestrator // nil off chain
	Health       map[string]HealthChecker
	Publisher    Publisher
	WebSocket    http.Handler
	Timeout      time.Duration
}

// Server handles HTTP requests
type Server struct {
	svc       *service.Service
	orch      *vrf.Orchestrator
	health    map[string]HealthChecker
	publisher Publisher
	ws        http.Handler
	timeout   time.Duration
	startTime time.Time
}

func NewServer(svc *service.Service, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = config.RequestTimeout
	}
	return &Server{
		svc:       svc,
		orch:      opts.Orchestrator,
		health:    opts.Health,
		publisher: opts.Publisher,
		ws:        opts.WebSocket,
		timeout:   opts.Timeout,
		startTime: time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/health", s.handleHealthCheck)
		r.Get("/features", s.handleFeatures)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/verify", s.handleVerify)
		r.Post("/identity/anonymous", s.handleAnonymousID)

		r.Post("/sequence", s.handleGenerateSequence)
		r.Post("/rounds", s.handleStartRound)
		r.Post("/rounds/{sessionID}/result", s.handleSubmitResult)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/progress", s.handleProgress)
			r.Get("/achievements", s.handleAchievements)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/difficulty", s.handleDifficulty)
		})

		r.Get("/vrf/requests/{requestID}", s.handleVRFRequest)
		r.Get("/vrf/pending", s.handleVRFPending)
	})

	return r
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Wallet-Address")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/* =========================
   IDENTITY
========================= */

const (
	headerUserID = "X-User-ID"
	headerWallet = "X-Wallet-Address"
)

// userID prefers the wallet address, the on-chain identity, over the
// account or anonymous id.
func userID(r *http.Request) string {
	if w := strings.TrimSpace(r.Header.Get(headerWallet)); w != "" {
		return strings.ToLower(w)
	}
	return strings.TrimSpace(r.Header.Get(headerUserID))
}

/* =========================
   RESPONSES
========================= */

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// sendServiceError maps a typed error onto a status and a user-facing message.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errs.IsAuth(err):
		status = http.StatusUnauthorized
	case errs.IsSession(err):
		status = http.StatusConflict
	case errs.IsVRF(err):
		status = http.StatusServiceUnavailable
	case errs.IsChain(err):
		status = http.StatusBadGateway
	}

	log.Printf("❌ %s %s failed: %v", r.Method, r.URL.Path, err)
	sendJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     errs.UserMessage(err),
		Kind:      errs.KindOf(err).String(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}
