package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vrfGameServer/config"
	"vrfGameServer/game"
	"vrfGameServer/service"
	"vrfGameServer/ws"
)

/* =========================
   REQUEST TYPES
========================= */

// SubmitResultRequest carries a finished round. When Correct is set the score
// is computed server side from the registered round instead of trusting
// Result.Score.
type SubmitResultRequest struct {
	Result  game.GameResult `json:"result"`
	Config  game.GameConfig `json:"config"`
	Correct *int            `json:"correct,omitempty"`
}

type VerifyRequest struct {
	Config game.GameConfig `json:"config"`
	Seed   game.Seed       `json:"seed"`
	Items  []game.Item     `json:"items,omitempty"`
}

/* =========================
   HEALTH / FEATURES
========================= */

// handleHealthCheck handles GET /api/health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{}
	healthy := true
	for name, hc := range s.health {
		if err := hc.HealthCheck(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	sendJSON(w, status, map[string]any{
		"success": healthy,
		"mode":    s.svc.Mode(),
		"checks":  checks,
		"uptime":  int64(time.Since(s.startTime).Seconds()),
		"clients": s.svc.State().TotalConnections.Load(),
		"message": "Health check completed",
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"mode":     s.svc.Mode(),
		"features": s.svc.Features(),
	})
}

// handleAnonymousID issues a guest id for players without an account.
func (s *Server) handleAnonymousID(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  config.AnonymousPrefix + uuid.NewString(),
	})
}

/* =========================
   ROUNDS
========================= */

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleGenerateSequence handles POST /api/sequence
func (s *Server) handleGenerateSequence(w http.ResponseWriter, r *http.Request) {
	var cfg game.GameConfig
	if !decode(w, r, &cfg) {
		return
	}
	seq, err := s.svc.GenerateGameSequence(r.Context(), userID(r), cfg)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "sequence": seq})
}

// handleStartRound handles POST /api/rounds
func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	var cfg game.GameConfig
	if !decode(w, r, &cfg) {
		return
	}
	round, err := s.svc.StartGameSession(r.Context(), userID(r), cfg)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "round": round})
}

// handleSubmitResult handles POST /api/rounds/{sessionID}/result
func (s *Server) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	var req SubmitResultRequest
	if !decode(w, r, &req) {
		return
	}

	user := userID(r)
	sessionID := chi.URLParam(r, "sessionID")

	var breakdown *game.ScoreBreakdown
	if req.Correct != nil {
		b, err := s.svc.ScoreRound(user, sessionID, *req.Correct, req.Result.TimeSpent, req.Result.Technique)
		if errors.Is(err, service.ErrCorrectOutOfRange) {
			sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			sendServiceError(w, r, err)
			return
		}
		breakdown = &b
		req.Result.Score = b.Score
		req.Result.Accuracy = b.Accuracy
	}

	res, err := s.svc.SubmitGameResult(r.Context(), user, sessionID, req.Result, req.Config)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	if s.publisher != nil && res.Submission != nil && res.Submission.IsEligible {
		s.publisher.Publish(ws.ChannelLeaderboard+req.Config.GameType, map[string]any{
			"type":      "round_result",
			"userId":    user,
			"score":     res.Result.Score,
			"newRecord": res.NewRecord,
		})
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"result":         res,
		"scoreBreakdown": breakdown,
	})
}

// handleVerify handles POST /api/verify. It rebuilds a round from its seed
// and, when items are given, checks them against it.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	items := game.VerifySequence(req.Config, req.Seed)
	resp := map[string]any{"success": true, "seed": req.Seed, "items": items}
	if req.Items != nil {
		resp["valid"] = s.svc.VerifyRound(req.Config, req.Seed, req.Items)
	}
	sendJSON(w, http.StatusOK, resp)
}

/* =========================
   LEADERBOARD / USERS
========================= */

func intParam(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil {
		return v
	}
	return def
}

// handleLeaderboard handles GET /api/leaderboard?gameType=&culture=&limit=
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.svc.Leaderboard(r.Context(), q.Get("gameType"), q.Get("culture"), intParam(r, "limit", config.DefaultLeaderboard))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "leaderboard": entries})
	log.Printf("📋 Retrieved leaderboard with %d entries", len(entries))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	gameType := r.URL.Query().Get("gameType")
	if gameType == "" {
		gameType = game.GameChaosCards
	}
	p, err := s.svc.UserProgress(r.Context(), chi.URLParam(r, "userID"), gameType)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "progress": p})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	achs, err := s.svc.UserAchievements(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "achievements": achs})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.UserStatistics(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "statistics": st})
}

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userID")
	baseline := intParam(r, "baseline", config.DefaultBaselineDifficulty)
	perfect := s.svc.State().Streaks.Get(user)
	sendJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"difficulty":         s.svc.NextDifficulty(user, baseline),
		"perfectRounds":      perfect,
		"progressionContext": game.ProgressionContext(perfect),
	})
}

/* =========================
   VRF REQUESTS
========================= */

func (s *Server) handleVRFRequest(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		sendError(w, http.StatusNotFound, "VRF is not enabled in offchain mode")
		return
	}
	req, ok := s.orch.Request(chi.URLParam(r, "requestID"))
	if !ok {
		sendError(w, http.StatusNotFound, "VRF request not found")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "request": req})
}

func (s *Server) handleVRFPending(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		sendError(w, http.StatusNotFound, "VRF is not enabled in offchain mode")
		return
	}
	requester := r.URL.Query().Get("requester")
	if requester == "" {
		requester = userID(r)
	}
	pending := s.orch.PendingRequests(requester)
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "requests": pending, "count": len(pending)})
}
