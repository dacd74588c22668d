package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/domain"
)

// job wraps a handle for cron. SkipIfStillRunning keeps a slow fire from
// overlapping the next occurrence of the same timer.
func (s *Scheduler) job(h *handle) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: s.log})).
		Then(cron.FuncJob(func() { s.fire(h) }))
}

// fire runs one delivery for h. It never panics and never returns an error:
// every failure is logged and counted here.
func (s *Scheduler) fire(h *handle) {
	category := h.key.Category
	if h.cancelled.Load() {
		firesTotal.WithLabelValues(string(category), "cancelled").Inc()
		return
	}

	start := s.now()
	log := s.log.With("key", h.key.String(), "handle", h.id.String(), "frequency", h.frequency)

	ctx := s.baseCtx
	if s.fireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fireTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			firesTotal.WithLabelValues(string(category), "panic").Inc()
			log.Errorw("fire panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	defer func() {
		fireDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	}()

	lang, err := s.store.UserLanguage(ctx, h.key.UserID)
	if err != nil || lang == "" {
		if err != nil {
			log.Warnw("language lookup failed, using default", "error", err)
		}
		lang = domain.DefaultLanguage
	}

	content := s.provider.Fetch(ctx, category, "")
	d := s.composer.Compose(ctx, category, content, lang, digest.ModeFor(h.frequency))

	if err := s.dispatcher.Deliver(ctx, h.key.UserID, d.Text, d.Options); err != nil {
		reason := failureReason(err)
		deliveryFailures.WithLabelValues(reason).Inc()
		firesTotal.WithLabelValues(string(category), "failed").Inc()
		log.Warnw("delivery failed", "reason", reason, "error", err)
		return
	}

	at := s.now()
	if at.Before(start) {
		at = start
	}
	err = s.store.RecordDelivered(ctx, h.key.UserID, category, at)
	if errors.Is(err, domain.ErrNotFound) {
		// the subscription was deleted while this timer stayed armed
		s.retire(h, ^uint64(0))
		firesTotal.WithLabelValues(string(category), "orphaned").Inc()
		log.Warnw("subscription gone, timer retired")
		return
	}
	if err != nil {
		// the digest went out; the next fire may repeat it
		log.Errorw("record delivered failed", "error", err)
		firesTotal.WithLabelValues(string(category), "unrecorded").Inc()
		return
	}

	firesTotal.WithLabelValues(string(category), "delivered").Inc()
	log.Infow("delivered digest",
		"snippets", d.Snippets,
		"lang", lang,
		"fallback", content.Fallback,
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRecipientBlocked):
		return "blocked"
	case errors.Is(err, domain.ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "network"
}
