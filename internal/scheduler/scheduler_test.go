package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/pulsebot/internal/content"
	"github.com/tazhate/pulsebot/internal/digest"
	"github.com/tazhate/pulsebot/internal/domain"
)

type record struct {
	userID   int64
	category domain.Category
	at       time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	buckets   map[Bucket][]domain.Subscriber
	failing   map[Bucket]bool
	langs     map[int64]domain.Language
	langErr   error
	recordErr error
	records   []record
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		buckets: make(map[Bucket][]domain.Subscriber),
		failing: make(map[Bucket]bool),
		langs:   make(map[int64]domain.Language),
	}
}

func (f *fakeStore) subscribe(userID int64, c domain.Category, fr domain.Frequency) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for b, subs := range f.buckets {
		if b.Category != c {
			continue
		}
		kept := subs[:0]
		for _, s := range subs {
			if s.UserID != userID {
				kept = append(kept, s)
			}
		}
		f.buckets[b] = kept
	}
	b := Bucket{Category: c, Frequency: fr}
	f.buckets[b] = append(f.buckets[b], domain.Subscriber{UserID: userID, Language: domain.LanguageEnglish})
}

func (f *fakeStore) UserLanguage(_ context.Context, userID int64) (domain.Language, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.langErr != nil {
		return "", f.langErr
	}
	if l, ok := f.langs[userID]; ok {
		return l, nil
	}
	return domain.DefaultLanguage, nil
}

func (f *fakeStore) ListSubscribers(_ context.Context, c domain.Category, fr domain.Frequency) ([]domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := Bucket{Category: c, Frequency: fr}
	if f.failing[b] {
		return nil, errors.New("db down")
	}
	return append([]domain.Subscriber(nil), f.buckets[b]...), nil
}

func (f *fakeStore) RecordDelivered(_ context.Context, userID int64, c domain.Category, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, record{userID: userID, category: c, at: at})
	return nil
}

func (f *fakeStore) recorded() []record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record(nil), f.records...)
}

type fakeProvider struct {
	content domain.Content
	panics  bool
	calls   atomic.Int32
}

func (p *fakeProvider) Fetch(_ context.Context, c domain.Category, _ string) domain.Content {
	p.calls.Add(1)
	if p.panics {
		panic("provider exploded")
	}
	out := p.content
	out.Category = c
	return out
}

type delivery struct {
	userID int64
	text   string
	opts   domain.FormatOptions
}

type fakeDispatcher struct {
	mu         sync.Mutex
	err        error
	block      bool
	deliveries []delivery
}

func (d *fakeDispatcher) Deliver(ctx context.Context, userID int64, text string, opts domain.FormatOptions) error {
	if d.block {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, ctx.Err())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deliveries = append(d.deliveries, delivery{userID: userID, text: text, opts: opts})
	return nil
}

func (d *fakeDispatcher) sent() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery(nil), d.deliveries...)
}

// failingTranslator behaves like a translator whose upstream is down
type failingTranslator struct{}

func (failingTranslator) Translate(_ context.Context, text string, _, _ domain.Language) string {
	return text
}

type fixture struct {
	s          *Scheduler
	store      *fakeStore
	provider   *fakeProvider
	dispatcher *fakeDispatcher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		store: newFakeStore(),
		provider: &fakeProvider{content: domain.Content{Items: []domain.Item{
			{Title: "Coffee exports up", Description: "Record year", URL: "https://n/1"},
		}}},
		dispatcher: &fakeDispatcher{},
	}
	if opts.Location == nil {
		opts.Location = addis(t)
	}
	if opts.DeliveryTime == (DeliveryTime{}) {
		opts.DeliveryTime = DefaultDeliveryTime
	}
	s, err := New(f.store, f.provider, digest.NewComposer(failingTranslator{}), f.dispatcher, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	f.s = s
	return f
}

func (f *fixture) handle(t *testing.T, userID int64, c domain.Category) *handle {
	t.Helper()
	h, ok := f.s.registry.get(Key{UserID: userID, Category: c})
	require.True(t, ok, "no handle for %d:%s", userID, c)
	return h
}

func TestArmTwiceKeepsOneHandleSecondFrequencyWins(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyDaily))
	first := f.handle(t, 1, domain.CategoryNews)
	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyWeekly))

	st := f.s.Status()
	assert.Equal(t, 1, st.Active)
	require.Len(t, st.Timers, 1)
	assert.Equal(t, domain.FrequencyWeekly, st.Timers[0].Frequency)
	assert.Equal(t, time.Monday, st.Timers[0].NextFire.Weekday())

	assert.True(t, first.cancelled.Load())
	assert.Len(t, f.s.cron.Entries(), 1)
}

func TestArmSameFrequencyKeepsHandle(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryMemes, domain.FrequencyDaily))
	first := f.handle(t, 1, domain.CategoryMemes)
	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryMemes, domain.FrequencyDaily))

	assert.Same(t, first, f.handle(t, 1, domain.CategoryMemes))
	assert.Len(t, f.s.cron.Entries(), 1)
}

func TestArmValidates(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, f.s.Arm(ctx, 1, "gossip", domain.FrequencyDaily), domain.ErrInvalidCategory)
	assert.ErrorIs(t, f.s.Arm(ctx, 1, domain.CategoryNews, "hourly"), domain.ErrInvalidFrequency)
	assert.Zero(t, f.s.Status().Active)
}

func TestDailyToWeeklyReplacement(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 5, domain.CategorySports, domain.FrequencyDaily))
	old := f.handle(t, 5, domain.CategorySports)
	require.NoError(t, f.s.Arm(ctx, 5, domain.CategorySports, domain.FrequencyWeekly))

	// the replaced handle no longer delivers even if its entry was mid-dispatch
	f.s.fire(old)
	assert.Empty(t, f.dispatcher.sent())

	f.s.fire(f.handle(t, 5, domain.CategorySports))
	sent := f.dispatcher.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "Weekly Sports Update")
}

func TestDisarm(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	// absent key
	assert.NoError(t, f.s.Disarm(ctx, 9, domain.CategoryNews, domain.FrequencyDaily))

	require.NoError(t, f.s.Arm(ctx, 9, domain.CategoryNews, domain.FrequencyDaily))

	// frequency mismatch leaves the timer alone
	assert.NoError(t, f.s.Disarm(ctx, 9, domain.CategoryNews, domain.FrequencyWeekly))
	assert.Equal(t, 1, f.s.Status().Active)

	h := f.handle(t, 9, domain.CategoryNews)
	require.NoError(t, f.s.Disarm(ctx, 9, domain.CategoryNews, domain.FrequencyDaily))
	assert.Zero(t, f.s.Status().Active)
	assert.Empty(t, f.s.cron.Entries())

	// no fire starts after Disarm returns
	f.s.fire(h)
	assert.Empty(t, f.dispatcher.sent())
	assert.Zero(t, f.provider.calls.Load())

	require.NoError(t, f.s.Arm(ctx, 9, domain.CategoryVideos, domain.FrequencyWeekly))
	require.NoError(t, f.s.Disarm(ctx, 9, domain.CategoryVideos, ""))
	assert.Zero(t, f.s.Status().Active)

	assert.ErrorIs(t, f.s.Disarm(ctx, 9, "gossip", ""), domain.ErrInvalidCategory)
}

func TestStatusDistinctKeys(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, f.s.Arm(ctx, id, domain.CategoryNews, domain.FrequencyDaily))
	}

	st := f.s.Status()
	assert.Equal(t, 3, st.Active)
	assert.Equal(t, []string{"1:news", "2:news", "3:news"}, st.Keys)
	seen := map[string]bool{}
	for _, tm := range st.Timers {
		seen[tm.HandleID] = true
		assert.Equal(t, 9, tm.NextFire.Hour())
	}
	assert.Len(t, seen, 3)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.subscribe(1, domain.CategoryNews, domain.FrequencyDaily)
	f.store.subscribe(2, domain.CategoryNews, domain.FrequencyWeekly)
	f.store.subscribe(2, domain.CategoryWeather, domain.FrequencyDaily)

	report, err := f.s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Armed)
	assert.Empty(t, report.FailedBuckets)
	want := f.s.Status()

	for i := 0; i < 3; i++ {
		report, err = f.s.Reconcile(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Pruned)
		assert.Equal(t, want, f.s.Status())
	}
	assert.Len(t, f.s.cron.Entries(), 3)
}

func TestReconcilePrunesAndReplaces(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyDaily))
	require.NoError(t, f.s.Arm(ctx, 2, domain.CategorySocial, domain.FrequencyDaily))
	f.store.subscribe(1, domain.CategoryNews, domain.FrequencyWeekly)

	report, err := f.s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Armed)
	assert.Equal(t, 1, report.Pruned)

	st := f.s.Status()
	assert.Equal(t, []string{"1:news"}, st.Keys)
	assert.Equal(t, domain.FrequencyWeekly, st.Timers[0].Frequency)
}

func TestRetireChecksHandleIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyDaily))
	stale := f.handle(t, 1, domain.CategoryNews)
	startGen := f.s.registry.generation()

	// re-subscribing at the same frequency re-confirms the handle
	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyDaily))
	assert.Same(t, stale, f.handle(t, 1, domain.CategoryNews))
	assert.False(t, f.s.retire(stale, startGen))
	assert.Equal(t, 1, f.s.Status().Active)

	// a replaced handle is never pruned in place of its successor
	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyWeekly))
	assert.False(t, f.s.retire(stale, ^uint64(0)))
	assert.Equal(t, domain.FrequencyWeekly, f.handle(t, 1, domain.CategoryNews).frequency)

	current := f.handle(t, 1, domain.CategoryNews)
	assert.True(t, f.s.retire(current, ^uint64(0)))
	assert.Zero(t, f.s.Status().Active)
	assert.True(t, current.cancelled.Load())
}

func TestReconcileKeepsHandleConfirmedDuringRun(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 3, domain.CategorySports, domain.FrequencyDaily))
	h := f.handle(t, 3, domain.CategorySports)
	startGen := f.s.registry.generation()

	// a run that listed the bucket before the user subscribed again
	require.NoError(t, f.s.Arm(ctx, 3, domain.CategorySports, domain.FrequencyDaily))
	assert.Greater(t, h.gen.Load(), startGen)
	assert.False(t, f.s.retire(h, startGen))
	assert.Equal(t, []string{"3:sports"}, f.s.Status().Keys)
}

func TestReconcileSkipsFailingBucket(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 7, domain.CategoryMemes, domain.FrequencyDaily))
	f.store.subscribe(8, domain.CategoryNews, domain.FrequencyDaily)
	f.store.failing[Bucket{Category: domain.CategoryMemes, Frequency: domain.FrequencyDaily}] = true

	report, err := f.s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Bucket{{Category: domain.CategoryMemes, Frequency: domain.FrequencyDaily}}, report.FailedBuckets)
	assert.Equal(t, 1, report.Armed)
	assert.Zero(t, report.Pruned)
	assert.Equal(t, []string{"7:memes", "8:news"}, f.s.Status().Keys)
}

func TestFireDegradedStillDeliversOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.provider.content = domain.Content{Fallback: true}
	f.store.langs[4] = domain.LanguageAmharic
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 4, domain.CategoryNews, domain.FrequencyDaily))
	f.s.fire(f.handle(t, 4, domain.CategoryNews))

	sent := f.dispatcher.sent()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].text)
	assert.Equal(t, int64(4), sent[0].userID)
	assert.Equal(t, "HTML", sent[0].opts.ParseMode)
	assert.Len(t, f.store.recorded(), 1)
}

func TestFireDeliveryFailureDoesNotRecord(t *testing.T) {
	f := newFixture(t, Options{})
	f.dispatcher.err = fmt.Errorf("send: %w", domain.ErrRecipientBlocked)
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 4, domain.CategoryVideos, domain.FrequencyDaily))
	f.s.fire(f.handle(t, 4, domain.CategoryVideos))

	assert.Empty(t, f.store.recorded())
	assert.Equal(t, 1, f.s.Status().Active, "a failed delivery keeps the timer")
}

func TestFireRecordsAfterStart(t *testing.T) {
	var tick atomic.Int64
	base := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	f := newFixture(t, Options{Now: now})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 3, domain.CategoryWeather, domain.FrequencyWeekly))
	before := now()
	f.s.fire(f.handle(t, 3, domain.CategoryWeather))

	recs := f.store.recorded()
	require.Len(t, recs, 1)
	assert.Equal(t, int64(3), recs[0].userID)
	assert.Equal(t, domain.CategoryWeather, recs[0].category)
	assert.True(t, recs[0].at.After(before), "recorded %v, fire began after %v", recs[0].at, before)
	assert.Len(t, f.dispatcher.sent(), 1)
}

func TestFireWeatherForUser42(t *testing.T) {
	f := newFixture(t, Options{})
	w := content.MockWeather("Addis Ababa")
	f.provider.content = domain.Content{Weather: &w}
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 42, domain.CategoryWeather, domain.FrequencyDaily))
	f.s.fire(f.handle(t, 42, domain.CategoryWeather))

	sent := f.dispatcher.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].userID)
	for _, want := range []string{"22°C", "Partly cloudy", "65%", "8 km/h"} {
		assert.Contains(t, sent[0].text, want)
	}
	records := f.store.recorded()
	require.Len(t, records, 1)
	assert.Equal(t, domain.CategoryWeather, records[0].category)
}

func TestFireRetiresTimerWithoutSubscription(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.recordErr = fmt.Errorf("update: %w", domain.ErrNotFound)
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 5, domain.CategoryMemes, domain.FrequencyDaily))
	h := f.handle(t, 5, domain.CategoryMemes)
	f.s.fire(h)

	assert.Len(t, f.dispatcher.sent(), 1)
	assert.True(t, h.cancelled.Load())
	assert.Zero(t, f.s.Status().Active)
	assert.Empty(t, f.s.cron.Entries())

	f.s.fire(h)
	assert.Len(t, f.dispatcher.sent(), 1, "a retired timer does not deliver again")
}

func TestFireLanguageLookupFailureUsesDefault(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.langErr = errors.New("db down")
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 2, domain.CategoryNews, domain.FrequencyDaily))
	f.s.fire(f.handle(t, 2, domain.CategoryNews))

	sent := f.dispatcher.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "Daily News Update")
}

func TestFireRecordFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.recordErr = errors.New("disk full")
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 2, domain.CategoryNews, domain.FrequencyDaily))
	assert.NotPanics(t, func() { f.s.fire(f.handle(t, 2, domain.CategoryNews)) })
	assert.Len(t, f.dispatcher.sent(), 1)
}

func TestFirePanicIsContained(t *testing.T) {
	f := newFixture(t, Options{})
	f.provider.panics = true
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 2, domain.CategoryNews, domain.FrequencyDaily))
	assert.NotPanics(t, func() { f.s.fire(f.handle(t, 2, domain.CategoryNews)) })
	assert.Empty(t, f.dispatcher.sent())
	assert.Empty(t, f.store.recorded())

	// other timers are unaffected
	f.provider.panics = false
	require.NoError(t, f.s.Arm(ctx, 3, domain.CategoryNews, domain.FrequencyDaily))
	f.s.fire(f.handle(t, 3, domain.CategoryNews))
	assert.Len(t, f.dispatcher.sent(), 1)
}

func TestFireTimeout(t *testing.T) {
	f := newFixture(t, Options{FireTimeout: 50 * time.Millisecond})
	f.dispatcher.block = true
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 2, domain.CategoryNews, domain.FrequencyDaily))
	done := make(chan struct{})
	go func() {
		f.s.fire(f.handle(t, 2, domain.CategoryNews))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fire did not honour FireTimeout")
	}
	assert.Empty(t, f.store.recorded())
}

func TestJobRunsFire(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 6, domain.CategorySocial, domain.FrequencyDaily))
	f.s.job(f.handle(t, 6, domain.CategorySocial)).Run()

	sent := f.dispatcher.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(6), sent[0].userID)
}

func TestConcurrentArmDisarmKeepsOneTimer(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			freq := domain.FrequencyDaily
			if i%2 == 0 {
				freq = domain.FrequencyWeekly
			}
			if i%5 == 0 {
				f.s.Disarm(ctx, 1, domain.CategoryNews, "")
				return
			}
			f.s.Arm(ctx, 1, domain.CategoryNews, freq)
			f.s.Arm(ctx, int64(100+i), domain.CategoryNews, freq)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, f.s.registry.Len()-40, 1)
	assert.Len(t, f.s.cron.Entries(), f.s.registry.Len())
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.s.Arm(ctx, 1, domain.CategoryNews, domain.FrequencyDaily))
	require.NoError(t, f.s.Arm(ctx, 2, domain.CategoryMemes, domain.FrequencyWeekly))
	f.s.Start()

	sctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.s.Shutdown(sctx))

	assert.Zero(t, f.s.Status().Active)
	assert.ErrorIs(t, f.s.Arm(ctx, 3, domain.CategoryNews, domain.FrequencyDaily), ErrShutdown)
	_, err := f.s.Reconcile(ctx)
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestInjectedRegistryIsShared(t *testing.T) {
	reg := NewRegistry()
	f := newFixture(t, Options{Registry: reg})

	require.NoError(t, f.s.Arm(context.Background(), 1, domain.CategoryNews, domain.FrequencyDaily))
	assert.Same(t, reg, f.s.Registry())
	assert.Equal(t, 1, reg.Len())
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "blocked", failureReason(fmt.Errorf("x: %w", domain.ErrRecipientBlocked)))
	assert.Equal(t, "malformed", failureReason(domain.ErrMalformedMessage))
	assert.Equal(t, "timeout", failureReason(fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, context.DeadlineExceeded)))
	assert.Equal(t, "network", failureReason(domain.ErrDeliveryFailed))
}
