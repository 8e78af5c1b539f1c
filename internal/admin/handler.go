// Package admin exposes the operator surface: login, runtime delivery-mode
// control and relay counters. Everything but login sits behind a bearer
// token.
package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/store"
)

type Handler struct {
	cfg   *config.Config
	store store.Store
	stats *store.Stats
	auth  *AuthService
	log   logrus.FieldLogger
}

func NewHandler(cfg *config.Config, s store.Store, stats *store.Stats, log logrus.FieldLogger) (*Handler, error) {
	auth, err := NewAuthService(cfg.Global.Admin.Password, cfg.Global.Admin.JWTSecret)
	if err != nil {
		return nil, err
	}

	return &Handler{
		cfg:   cfg,
		store: s,
		stats: stats,
		auth:  auth,
		log:   log,
	}, nil
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Get("/mode", h.getMode)
		r.Put("/mode", h.setMode)
		r.Get("/stats", h.getStats)
	})
	return r
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		if _, err := h.auth.ValidateToken(parts[1]); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.auth.ValidatePassword(req.Password); err != nil {
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := h.auth.GenerateToken()
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) getMode(w http.ResponseWriter, r *http.Request) {
	mode, err := store.GetMode(r.Context(), h.store, h.cfg.Global.Mode)
	if err != nil {
		http.Error(w, "Failed to read mode", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

func (h *Handler) setMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if !config.ValidMode(mode) {
		http.Error(w, "Invalid mode", http.StatusBadRequest)
		return
	}

	if err := store.SetMode(r.Context(), h.store, mode); err != nil {
		http.Error(w, "Failed to set mode", http.StatusInternalServerError)
		return
	}

	h.log.WithField("mode", mode).Info("delivery mode switched")
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	names := []string{
		store.StatAccepted, store.StatRejected, store.StatRateLimited,
		store.StatDispatched, store.StatDispatchFailed,
		store.StatRepliesSent, store.StatRepliesFailed,
	}

	totals, err := h.stats.Totals(r.Context(), names...)
	if err != nil {
		http.Error(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}
	today, err := h.stats.Today(r.Context(), names...)
	if err != nil {
		http.Error(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totals": totals,
		"today":  today,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
