package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/scheduler"
)

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ReconcileResponse struct {
	Success bool `json:"success"`
	scheduler.ReconcileReport
	Error string `json:"error,omitempty"`
}

type StatusResponse struct {
	Success bool `json:"success"`
	scheduler.Status
}

type SubscriptionResponse struct {
	Category        string  `json:"category"`
	Frequency       string  `json:"frequency"`
	NextDelivery    string  `json:"next_delivery,omitempty"`
	LastDeliveredAt *string `json:"last_delivered_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type subscribeRequest struct {
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
}

// Router builds the HTTP surface: webhook, health, metrics and the admin
// routes. Admin routes require basic auth when credentials are configured.
func (b *Bot) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(b.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", b.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/bot", b.webhook)

	r.Group(func(r chi.Router) {
		if b.cfg.APIAuthEnabled() {
			r.Use(middleware.BasicAuth("PulseBot API", map[string]string{
				b.cfg.APIUsername: b.cfg.APIPassword,
			}))
		}

		r.Post("/scheduler/init", b.apiSchedulerInit)
		r.Get("/scheduler/status", b.apiSchedulerStatus)

		r.Route("/api/users/{userID}", func(r chi.Router) {
			r.Get("/subscriptions", b.apiSubscriptions)
			r.Post("/subscriptions", b.apiSubscribe)
			r.Delete("/subscriptions/{category}", b.apiUnsubscribe)
			r.Get("/schedule.ics", b.apiScheduleICS)
		})
	})
	return r
}

func (b *Bot) requestLogger(next http.Handler) http.Handler {
	log := b.log.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (b *Bot) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	b.jsonResponse(w, status, APIResponse{Success: false, Error: err})
}

// GET /health
func (b *Bot) health(w http.ResponseWriter, r *http.Request) {
	if b.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := b.store.Ping(ctx); err != nil {
			b.jsonError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	// open breakers degrade health but never fail it
	var open []string
	if b.upstreams != nil {
		for _, u := range b.upstreams.Upstreams() {
			if u.Open {
				open = append(open, u.Name)
			}
		}
	}
	w.WriteHeader(http.StatusOK)
	if len(open) > 0 {
		w.Write([]byte("degraded: " + strings.Join(open, ",")))
		return
	}
	w.Write([]byte("ok"))
}

// POST /bot - Telegram webhook
func (b *Bot) webhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.dispatch(*update)
	w.WriteHeader(http.StatusOK)
}

// POST /scheduler/init - rebuild timers from stored subscriptions
func (b *Bot) apiSchedulerInit(w http.ResponseWriter, r *http.Request) {
	report, err := b.sched.Reconcile(r.Context())
	switch {
	case err != nil:
		b.log.Errorw("reconcile failed", "error", err)
		b.jsonResponse(w, http.StatusInternalServerError, ReconcileResponse{
			ReconcileReport: report,
			Error:           err.Error(),
		})
	case len(report.FailedBuckets) > 0:
		b.jsonResponse(w, http.StatusInternalServerError, ReconcileResponse{
			ReconcileReport: report,
			Error:           "some subscription buckets could not be listed",
		})
	default:
		b.jsonResponse(w, http.StatusOK, ReconcileResponse{Success: true, ReconcileReport: report})
	}
}

// GET /scheduler/status
func (b *Bot) apiSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	b.jsonResponse(w, http.StatusOK, StatusResponse{Success: true, Status: b.sched.Status()})
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	return id, err == nil && id != 0
}

// GET /api/users/{userID}/subscriptions
func (b *Bot) apiSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		b.jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	subs, err := b.subs.List(r.Context(), userID)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Data: b.subscriptionsToResponse(subs)})
}

// POST /api/users/{userID}/subscriptions {"category": "news", "frequency": "daily"}
func (b *Bot) apiSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		b.jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	c, err := domain.ParseCategory(req.Category)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := b.subs.Subscribe(r.Context(), userID, c, f)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.jsonResponse(w, http.StatusCreated, APIResponse{Success: true, Data: b.subscriptionToResponse(sub)})
}

// DELETE /api/users/{userID}/subscriptions/{category}
func (b *Bot) apiUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		b.jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	c, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = b.subs.Unsubscribe(r.Context(), userID, c)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.jsonError(w, "subscription not found", http.StatusNotFound)
	case err != nil:
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		b.jsonResponse(w, http.StatusOK, APIResponse{Success: true})
	}
}

// GET /api/users/{userID}/schedule.ics
func (b *Bot) apiScheduleICS(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		b.jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	data, err := b.subs.Calendar(r.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.jsonError(w, "no subscriptions", http.StatusNotFound)
		return
	case err != nil:
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pulsebot-`+strconv.FormatInt(userID, 10)+`.ics"`)
	w.Write(data)
}

func (b *Bot) subscriptionsToResponse(subs []*domain.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, b.subscriptionToResponse(s))
	}
	return out
}

func (b *Bot) subscriptionToResponse(s *domain.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		Category:  s.Category.String(),
		Frequency: s.Frequency.String(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if next := b.subs.NextDelivery(s); !next.IsZero() {
		resp.NextDelivery = next.Format(time.RFC3339)
	}
	if s.LastDeliveredAt != nil {
		v := s.LastDeliveredAt.Format(time.RFC3339)
		resp.LastDeliveredAt = &v
	}
	return resp
}
