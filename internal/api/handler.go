// Package api serves the submission endpoint. The handler walks the intake
// pipeline in a fixed order (validation, single-message classification,
// behavioral profiling, rate limit, captcha) and only then hands the
// message to the dispatcher.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/abuse"
	"github.com/matthewshammond/MailBridge/internal/admin"
	"github.com/matthewshammond/MailBridge/internal/captcha"
	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/dispatch"
	"github.com/matthewshammond/MailBridge/internal/intake"
	"github.com/matthewshammond/MailBridge/internal/notify"
	"github.com/matthewshammond/MailBridge/internal/ratelimit"
	"github.com/matthewshammond/MailBridge/internal/resolve"
	"github.com/matthewshammond/MailBridge/internal/store"
)

type Handler struct {
	cfg        *config.Config
	resolver   *resolve.Resolver
	tracker    *abuse.Tracker
	limiter    *ratelimit.Limiter
	verifier   *captcha.Verifier
	dispatcher *dispatch.Dispatcher
	modes      *dispatch.ModeSource
	stats      *store.Stats
	notifier   *notify.Notifier
	admin      *admin.Handler
	log        logrus.FieldLogger
}

func New(cfg *config.Config, resolver *resolve.Resolver, tracker *abuse.Tracker, limiter *ratelimit.Limiter, verifier *captcha.Verifier, dispatcher *dispatch.Dispatcher, modes *dispatch.ModeSource, stats *store.Stats, notifier *notify.Notifier, adminHandler *admin.Handler, log logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:        cfg,
		resolver:   resolver,
		tracker:    tracker,
		limiter:    limiter,
		verifier:   verifier,
		dispatcher: dispatcher,
		modes:      modes,
		stats:      stats,
		notifier:   notifier,
		admin:      adminHandler,
		log:        log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins:   h.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		r.Post("/v1/form/{formKey}", h.handleSubmission)

		if h.admin != nil {
			r.Mount("/admin", h.admin.Routes())
		}
	})

	return r
}

// allowedOrigins is the union of every channel's allowed domains, expanded to
// https origins; per-channel enforcement happens in the resolver.
func (h *Handler) allowedOrigins() []string {
	var origins []string
	seen := make(map[string]bool)
	for _, ch := range h.cfg.Channels {
		for _, d := range ch.AllowedDomains {
			origin := "https://" + d
			if !seen[origin] {
				seen[origin] = true
				origins = append(origins, origin, origin+":*", "https://*."+d)
			}
		}
	}
	return origins
}

func (h *Handler) handleSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formKey := chi.URLParam(r, "formKey")
	origin := r.Header.Get("Origin")
	clientIP := clientIP(r)

	target, err := h.resolver.Submission(formKey, origin)
	if err != nil {
		switch {
		case errors.Is(err, resolve.ErrChannelNotFound):
			h.reject(ctx, w, http.StatusNotFound, "Form not found")
		case errors.Is(err, resolve.ErrOriginNotAllowed):
			h.reject(ctx, w, http.StatusForbidden, "Domain not allowed")
		default:
			h.log.WithError(err).WithField("channel", formKey).Error("resolution failed")
			h.reject(ctx, w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	sub, err := decodeSubmission(r)
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := intake.Normalize(sub, clientIP, formKey, time.Now())
	if err != nil {
		// The failing stage is logged, never echoed.
		h.log.WithError(err).WithFields(logrus.Fields{"channel": formKey, "origin": clientIP}).Info("submission rejected")
		h.reject(ctx, w, http.StatusBadRequest, "Invalid submission")
		return
	}

	if err := abuse.Check(msg.SenderName, msg.Body); err != nil {
		h.log.WithFields(logrus.Fields{"channel": formKey, "origin": clientIP}).Info("submission classified as spam")
		h.reject(ctx, w, http.StatusBadRequest, "Invalid submission")
		return
	}

	// The profile update is unconditional; the verdict reflects the
	// origin's history.
	if h.tracker.Observe(ctx, msg) {
		h.log.WithFields(logrus.Fields{"channel": formKey, "origin": clientIP}).Info("origin flagged by behavior profile")
		h.reject(ctx, w, http.StatusBadRequest, "Invalid submission")
		return
	}

	if err := h.limiter.Allow(ctx, clientIP, formKey); err != nil {
		h.rejectStat(ctx, w, http.StatusTooManyRequests, "Too many requests", store.StatRateLimited)
		return
	}

	if target.Channel.Captcha != nil {
		if err := h.verifier.Verify(ctx, target.Channel.Captcha, msg.CaptchaToken, clientIP); err != nil {
			h.log.WithError(err).WithField("channel", formKey).Info("captcha rejected")
			h.reject(ctx, w, http.StatusBadRequest, "Invalid submission")
			return
		}
	}

	// Accepted. The response does not wait for delivery; failures from here
	// on are logged only.
	mode := h.modes.Current(ctx)
	ack := dispatch.ComposeAck(msg, target.Channel, target.Responder, mode)
	h.dispatcher.Enqueue(dispatch.Job{Kind: dispatch.KindAck, Mail: ack, Channel: target.Channel})

	if err := h.stats.Incr(ctx, store.StatAccepted); err != nil {
		h.log.WithError(err).Debug("stat increment failed")
	}
	h.notifier.Push(ctx, "Form submission received", formKey+": "+msg.Subject)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Form submitted successfully",
	})
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.rejectStat(ctx, w, status, message, store.StatRejected)
}

func (h *Handler) rejectStat(ctx context.Context, w http.ResponseWriter, status int, message, stat string) {
	if err := h.stats.Incr(ctx, stat); err != nil {
		h.log.WithError(err).Debug("stat increment failed")
	}
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}

func decodeSubmission(r *http.Request) (intake.Submission, error) {
	var sub intake.Submission

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		err := json.NewDecoder(r.Body).Decode(&sub)
		return sub, err
	}

	if err := r.ParseForm(); err != nil {
		return sub, err
	}
	sub.Name = r.PostFormValue("name")
	sub.Email = r.PostFormValue("email")
	sub.Subject = r.PostFormValue("subject")
	sub.Body = r.PostFormValue("content")
	sub.Honeypot = r.PostFormValue("website")
	sub.Captcha = r.PostFormValue("captcha_token")
	return sub, nil
}

// clientIP resolves the submitter origin, trusting proxy headers when set.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		ip = xrip
	} else if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		ip = strings.TrimSpace(parts[0])
	}
	if strings.Contains(ip, ":") {
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
