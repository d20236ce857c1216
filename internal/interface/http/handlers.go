package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alem-hub/progression-engine/internal/application/command"
	"github.com/alem-hub/progression-engine/internal/application/query"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// XP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// awardXPRequest is the body of POST /api/v1/users/{id}/xp.
type awardXPRequest struct {
	// Amount stays a json.Number: fractional values are an invalid amount,
	// not malformed JSON.
	Amount     json.Number `json:"amount"`
	Reason     string      `json:"reason"`
	SourceType string      `json:"sourceType"`
	SourceID   string      `json:"sourceId"`
}

// handleAwardXP handles POST /api/v1/users/{id}/xp
func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.AwardXPHandler == nil {
		s.notConfigured(w, r, "AwardXP")
		return
	}

	var body awardXPRequest
	if !s.decodeBody(w, r, &body, false) {
		return
	}

	amount, err := body.Amount.Int64()
	if err != nil {
		s.writeError(w, r, shared.ErrInvalidAmount)
		return
	}

	result, err := s.deps.AwardXPHandler.Handle(r.Context(), command.AwardXPCommand{
		UserID:     r.PathValue("id"),
		Amount:     int(amount),
		Reason:     body.Reason,
		SourceType: body.SourceType,
		SourceID:   body.SourceID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if result.IsPartial() {
		log := logger.FromContext(r.Context(), s.logger)
		for _, f := range result.PartialFailures {
			log.Warn("award side effect failed",
				logger.UserID(r.PathValue("id")),
				logger.AchievementID(f.AchievementID),
				logger.String("stage", f.Stage),
				logger.String("error", f.Error),
			)
		}
	}

	writeJSON(w, r, http.StatusCreated, result)
}

// handleGetUserXP handles GET /api/v1/users/{id}/xp
func (s *Server) handleGetUserXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserXPHandler == nil {
		s.notConfigured(w, r, "GetUserXP")
		return
	}

	recent, err := queryInt(r, "recent", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetUserXPHandler.Handle(r.Context(), query.GetUserXPQuery{
		UserID:      r.PathValue("id"),
		RecentLimit: recent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK & ACTIVITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserStreak handles GET /api/v1/users/{id}/streak
func (s *Server) handleGetUserStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStreakHandler == nil {
		s.notConfigured(w, r, "GetUserStreak")
		return
	}

	result, err := s.deps.GetUserStreakHandler.Handle(r.Context(), query.GetUserStreakQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleApplyFreeze handles POST /api/v1/users/{id}/streak/freeze
func (s *Server) handleApplyFreeze(w http.ResponseWriter, r *http.Request) {
	if s.deps.ApplyFreezeHandler == nil {
		s.notConfigured(w, r, "ApplyFreeze")
		return
	}

	result, err := s.deps.ApplyFreezeHandler.Handle(r.Context(), command.ApplyFreezeCommand{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleRecordActivity handles POST /api/v1/users/{id}/activity
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordActivityHandler == nil {
		s.notConfigured(w, r, "RecordActivity")
		return
	}

	result, err := s.deps.RecordActivityHandler.Handle(r.Context(), command.RecordActivityCommand{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetActivityCalendar handles GET /api/v1/users/{id}/activity?days=
func (s *Server) handleGetActivityCalendar(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActivityCalendarHandler == nil {
		s.notConfigured(w, r, "GetActivityCalendar")
		return
	}

	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetActivityCalendarHandler.Handle(r.Context(), query.GetActivityCalendarQuery{
		UserID: r.PathValue("id"),
		Days:   days,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetDailyGoal handles GET /api/v1/users/{id}/daily-goal
func (s *Server) handleGetDailyGoal(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDailyGoalHandler == nil {
		s.notConfigured(w, r, "GetDailyGoal")
		return
	}

	result, err := s.deps.GetDailyGoalHandler.Handle(r.Context(), query.GetDailyGoalQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserAchievements handles GET /api/v1/users/{id}/achievements
func (s *Server) handleGetUserAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserAchievementsHandler == nil {
		s.notConfigured(w, r, "GetUserAchievements")
		return
	}

	result, err := s.deps.GetUserAchievementsHandler.Handle(r.Context(), query.GetUserAchievementsQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// checkAchievementsRequest is the optional body of
// POST /api/v1/users/{id}/achievements/check.
type checkAchievementsRequest struct {
	EventType string `json:"eventType"`
}

// handleCheckAchievements handles POST /api/v1/users/{id}/achievements/check
func (s *Server) handleCheckAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckAchievementsHandler == nil {
		s.notConfigured(w, r, "CheckAchievements")
		return
	}

	var body checkAchievementsRequest
	if !s.decodeBody(w, r, &body, true) {
		return
	}

	result, err := s.deps.CheckAchievementsHandler.Handle(r.Context(), command.CheckAchievementsCommand{
		UserID:    r.PathValue("id"),
		EventType: body.EventType,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleListAchievements handles GET /api/v1/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListAchievementsHandler == nil {
		s.notConfigured(w, r, "ListAchievements")
		return
	}

	result, err := s.deps.ListAchievementsHandler.Handle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Achievements)})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard?timeframe=&limit=&offset=
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		s.notConfigured(w, r, "GetLeaderboard")
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		Timeframe: r.URL.Query().Get("timeframe"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalUsers,
		Limit:      result.Limit,
		Offset:     result.Offset,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps an application error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_input"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrNoFreezeAvailable):
		return http.StatusConflict, "no_freeze_available"
	case shared.IsInvalidState(err):
		return http.StatusConflict, "invalid_state"
	case shared.IsAlreadyExists(err), errors.Is(err, shared.ErrConcurrentModification):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err. Server errors are logged and their details hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), s.logger).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.UserID(r.PathValue("id")),
			logger.Err(err),
		)
		writeJSONError(w, r, status, code, "Internal server error")
		return
	}

	message := err.Error()
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	writeJSONError(w, r, status, code, message)
}

func (s *Server) notConfigured(w http.ResponseWriter, r *http.Request, name string) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", name+" handler not configured")
}

// decodeBody reads a JSON body into dst. With optional set an empty body is
// accepted. It reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		return false
	}

	writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Malformed JSON body: "+err.Error())
	return false
}
