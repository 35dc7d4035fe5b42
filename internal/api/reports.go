package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/identity"
	"github.com/ashureev/aidiary/internal/report"
	"github.com/ashureev/aidiary/internal/store"
)

// AccountHandler serves the signed-in user, the frontend config and reports.
type AccountHandler struct {
	users       store.UserStore
	reports     *report.Service
	provider    string
	authEnabled bool
}

// NewAccountHandler creates the account and report handler.
func NewAccountHandler(users store.UserStore, reports *report.Service, provider string, authEnabled bool) *AccountHandler {
	return &AccountHandler{
		users:       users,
		reports:     reports,
		provider:    provider,
		authEnabled: authEnabled,
	}
}

// RegisterRoutes registers account and report routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/reports/daily", h.DailyReport)
		r.Get("/reports/mood", h.Mood)
	})
}

// GetMe returns the current user's information.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}
	JSON(w, http.StatusOK, user)
}

// GetConfig returns the server configuration for the frontend.
func (h *AccountHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"generator":    h.provider,
		"auth_enabled": h.authEnabled,
	})
}

// DailyReport handles GET /api/reports/daily?date=YYYY-MM-DD. The date defaults to today.
func (h *AccountHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	date := h.reports.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, time.Local)
		if err != nil {
			Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	daily, err := h.reports.DailySummary(r.Context(), userID, date)
	if err != nil {
		slog.Error("Failed to build daily report", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	JSON(w, http.StatusOK, daily)
}

// Mood handles GET /api/reports/mood.
func (h *AccountHandler) Mood(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	mood, err := h.reports.TodayMood(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to compute mood", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to compute mood")
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"date": h.reports.Today().Format(domain.DateLayout),
		"mood": mood,
	})
}
