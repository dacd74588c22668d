// Package scheduler keeps exactly one recurring delivery timer per
// (user, category) subscription and runs the fetch, compose, deliver and
// record pipeline when a timer fires.
//
// Timers live in process memory only. Running two processes against the
// same store delivers every digest twice.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/pkg/logger"
)

var ErrShutdown = errors.New("scheduler is shut down")

type SubscriptionStore interface {
	UserLanguage(ctx context.Context, userID int64) (domain.Language, error)
	ListSubscribers(ctx context.Context, category domain.Category, frequency domain.Frequency) ([]domain.Subscriber, error)
	RecordDelivered(ctx context.Context, userID int64, category domain.Category, at time.Time) error
}

type ContentProvider interface {
	Fetch(ctx context.Context, category domain.Category, filter string) domain.Content
}

type Composer interface {
	Compose(ctx context.Context, category domain.Category, content domain.Content, lang domain.Language, mode digest.Mode) digest.Digest
}

type Dispatcher interface {
	Deliver(ctx context.Context, userID int64, text string, opts domain.FormatOptions) error
}

type Options struct {
	Location     *time.Location
	DeliveryTime DeliveryTime
	// FireTimeout bounds one fire; zero disables the bound
	FireTimeout time.Duration
	// Registry lets callers share or inspect the handle set; nil creates one
	Registry *Registry
	// ListParallelism caps concurrent bucket listings during Reconcile
	ListParallelism int
	Now             func() time.Time
}

type Scheduler struct {
	cron       *cron.Cron
	registry   *Registry
	store      SubscriptionStore
	provider   ContentProvider
	composer   Composer
	dispatcher Dispatcher

	loc         *time.Location
	at          DeliveryTime
	schedules   map[domain.Frequency]cron.Schedule
	fireTimeout time.Duration
	listLimit   int
	now         func() time.Time

	// baseCtx is cancelled only when Shutdown gives up waiting
	baseCtx    context.Context
	cancelBase context.CancelFunc
	closed     atomic.Bool
	startOnce  sync.Once

	log *zap.SugaredLogger
}

func New(store SubscriptionStore, provider ContentProvider, composer Composer, dispatcher Dispatcher, opts Options) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	at := opts.DeliveryTime
	if at.Hour < 0 || at.Hour > 23 || at.Minute < 0 || at.Minute > 59 {
		return nil, fmt.Errorf("invalid delivery time %s", at)
	}

	schedules := make(map[domain.Frequency]cron.Schedule)
	for _, f := range domain.Frequencies() {
		sched, err := scheduleFor(f, at)
		if err != nil {
			return nil, fmt.Errorf("build %s schedule: %w", f, err)
		}
		schedules[f] = sched
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	listLimit := opts.ListParallelism
	if listLimit <= 0 {
		listLimit = 4
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	log := logger.Named("scheduler")
	cl := cronLogger{log: log}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		registry:    registry,
		store:       store,
		provider:    provider,
		composer:    composer,
		dispatcher:  dispatcher,
		loc:         loc,
		at:          at,
		schedules:   schedules,
		fireTimeout: opts.FireTimeout,
		listLimit:   listLimit,
		now:         now,
		baseCtx:     baseCtx,
		cancelBase:  cancel,
		log:         log,
	}, nil
}

// Start begins running armed timers. Arm works before Start; those timers
// simply do not fire until the cron loop is running.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.cron.Start()
		s.log.Infow("scheduler started",
			"tz", s.loc.String(),
			"delivery_time", s.at.String(),
			"timers", s.registry.Len(),
		)
	})
}

func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Arm makes (userID, category) fire on frequency, replacing any timer the
// key already has. Arming the frequency already armed is a no-op.
func (s *Scheduler) Arm(ctx context.Context, userID int64, category domain.Category, frequency domain.Frequency) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	if !frequency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := Key{UserID: userID, Category: category}
	unlock := s.registry.lockKey(key)
	defer unlock()

	if s.closed.Load() {
		return ErrShutdown
	}

	if old, ok := s.registry.get(key); ok {
		if old.frequency == frequency && !old.cancelled.Load() {
			s.registry.touch(old)
			return nil
		}
		s.cancel(old)
		s.log.Infow("replacing timer",
			"key", key.String(),
			"from", old.frequency,
			"to", frequency,
		)
	}

	h := &handle{
		id:        uuid.New(),
		key:       key,
		frequency: frequency,
		armedAt:   s.now(),
	}
	h.entryID = s.cron.Schedule(s.schedules[frequency], s.job(h))
	s.registry.put(h)
	timersActive.Set(float64(s.registry.Len()))

	s.log.Debugw("armed timer",
		"key", key.String(),
		"frequency", frequency,
		"handle", h.id.String(),
		"next", NextFireTimeAt(frequency, s.at, s.loc, s.now()),
	)
	return nil
}

// Disarm cancels the timer for (userID, category) when it runs on frequency.
// An empty frequency matches any. A missing or differently scheduled timer
// is left alone and Disarm still succeeds.
func (s *Scheduler) Disarm(ctx context.Context, userID int64, category domain.Category, frequency domain.Frequency) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	if frequency != "" && !frequency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}

	key := Key{UserID: userID, Category: category}
	unlock := s.registry.lockKey(key)
	defer unlock()

	h, ok := s.registry.get(key)
	if !ok {
		return nil
	}
	if frequency != "" && h.frequency != frequency {
		return nil
	}
	s.cancel(h)
	timersActive.Set(float64(s.registry.Len()))
	s.log.Debugw("disarmed timer", "key", key.String(), "frequency", h.frequency)
	return nil
}

// retire cancels h if it is still the live handle for its key and was not
// armed or re-confirmed after maxGen. Pass ^uint64(0) to skip the gen check.
func (s *Scheduler) retire(h *handle, maxGen uint64) bool {
	unlock := s.registry.lockKey(h.key)
	defer unlock()

	if !s.registry.current(h) || h.gen.Load() > maxGen {
		return false
	}
	s.cancel(h)
	timersActive.Set(float64(s.registry.Len()))
	s.log.Debugw("retired timer", "key", h.key.String(), "frequency", h.frequency)
	return true
}

// cancel must be called with the key lock held.
func (s *Scheduler) cancel(h *handle) {
	h.cancelled.Store(true)
	s.cron.Remove(h.entryID)
	s.registry.remove(h)
}

type Bucket struct {
	Category  domain.Category  `json:"category"`
	Frequency domain.Frequency `json:"frequency"`
}

type ReconcileReport struct {
	Armed         int      `json:"armed"`
	Pruned        int      `json:"pruned"`
	FailedBuckets []Bucket `json:"failedBuckets"`
}

// Reconcile arms every subscription in the store and disarms timers whose
// subscription is gone. A bucket that cannot be listed is skipped, and its
// existing timers are kept as they are.
func (s *Scheduler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{FailedBuckets: []Bucket{}}
	if s.closed.Load() {
		return report, ErrShutdown
	}
	startGen := s.registry.generation()

	var buckets []Bucket
	for _, c := range domain.Categories() {
		for _, f := range domain.Frequencies() {
			buckets = append(buckets, Bucket{Category: c, Frequency: f})
		}
	}

	var (
		mu     sync.Mutex
		listed = make(map[Bucket][]domain.Subscriber, len(buckets))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listLimit)
	for _, b := range buckets {
		g.Go(func() error {
			subs, err := s.store.ListSubscribers(gctx, b.Category, b.Frequency)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warnw("list subscribers failed, skipping bucket",
					"category", b.Category,
					"frequency", b.Frequency,
					"error", err,
				)
				report.FailedBuckets = append(report.FailedBuckets, b)
				return nil
			}
			listed[b] = subs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		reconcileTotal.WithLabelValues("cancelled").Inc()
		return report, err
	}

	desired := make(map[Key]domain.Frequency)
	for _, b := range buckets {
		subs, ok := listed[b]
		if !ok {
			continue
		}
		for _, sub := range subs {
			key := Key{UserID: sub.UserID, Category: b.Category}
			desired[key] = b.Frequency
			if err := s.Arm(ctx, sub.UserID, b.Category, b.Frequency); err != nil {
				s.log.Errorw("arm during reconcile failed", "key", key.String(), "error", err)
				continue
			}
			report.Armed++
		}
	}

	for _, h := range s.registry.snapshot() {
		if h.gen.Load() > startGen {
			// armed during this run; the listing may predate it
			continue
		}
		if _, ok := listed[Bucket{Category: h.key.Category, Frequency: h.frequency}]; !ok {
			continue
		}
		if f, ok := desired[h.key]; ok && f == h.frequency {
			continue
		}
		if s.retire(h, startGen) {
			report.Pruned++
		}
	}

	sort.Slice(report.FailedBuckets, func(i, j int) bool {
		a, b := report.FailedBuckets[i], report.FailedBuckets[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Frequency < b.Frequency
	})

	result := "ok"
	if len(report.FailedBuckets) > 0 {
		result = "partial"
	}
	reconcileTotal.WithLabelValues(result).Inc()
	s.log.Infow("reconciled timers",
		"armed", report.Armed,
		"pruned", report.Pruned,
		"failed_buckets", len(report.FailedBuckets),
		"active", s.registry.Len(),
	)
	return report, nil
}

type TimerStatus struct {
	Key       string           `json:"key"`
	UserID    int64            `json:"userId"`
	Category  domain.Category  `json:"category"`
	Frequency domain.Frequency `json:"frequency"`
	NextFire  time.Time        `json:"nextFire"`
	ArmedAt   time.Time        `json:"armedAt"`
	HandleID  string           `json:"handleId"`
}

type Status struct {
	Active int           `json:"active"`
	Keys   []string      `json:"keys"`
	Timers []TimerStatus `json:"timers"`
}

// Status reports the armed, uncancelled timers ordered by key.
func (s *Scheduler) Status() Status {
	handles := s.registry.snapshot()
	now := s.now()
	st := Status{
		Active: len(handles),
		Keys:   make([]string, 0, len(handles)),
		Timers: make([]TimerStatus, 0, len(handles)),
	}
	for _, h := range handles {
		next := s.cron.Entry(h.entryID).Next
		if next.IsZero() {
			next = NextFireTimeAt(h.frequency, s.at, s.loc, now)
		}
		st.Keys = append(st.Keys, h.key.String())
		st.Timers = append(st.Timers, TimerStatus{
			Key:       h.key.String(),
			UserID:    h.key.UserID,
			Category:  h.key.Category,
			Frequency: h.frequency,
			NextFire:  next.In(s.loc),
			ArmedAt:   h.armedAt,
			HandleID:  h.id.String(),
		})
	}
	return st
}

// Shutdown cancels every timer so nothing new fires, then waits for running
// fires until ctx expires. Arm and Reconcile fail afterwards.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.closed.Store(true)

	for hs := s.registry.snapshot(); len(hs) > 0; hs = s.registry.snapshot() {
		for _, h := range hs {
			unlock := s.registry.lockKey(h.key)
			if cur, ok := s.registry.get(h.key); ok {
				s.cancel(cur)
			}
			unlock()
		}
	}
	timersActive.Set(0)

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.cancelBase()
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancelBase()
		s.log.Warn("scheduler stop timed out, in-flight fires cancelled")
		return ctx.Err()
	}
}
