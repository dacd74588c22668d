package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tazhate/pulsebot/internal/domain"
)

// Key identifies the single live timer a (user, category) pair may own.
type Key struct {
	UserID   int64
	Category domain.Category
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.UserID, k.Category)
}

// handle is one armed timer. Once cancelled is set the handle never fires
// again, even if its cron entry is already running.
type handle struct {
	id        uuid.UUID
	key       Key
	frequency domain.Frequency
	entryID   cron.EntryID
	armedAt   time.Time
	// gen orders handles by arm time without trusting the clock
	gen       atomic.Uint64
	cancelled atomic.Bool
}

// Registry holds the live handles. Callers serialize work on one key with
// lockKey; the map itself is guarded by mu, which is never held across
// blocking calls.
type Registry struct {
	mu       sync.Mutex
	handles  map[Key]*handle
	keyLocks map[Key]*sync.Mutex
	gen      atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{
		handles:  make(map[Key]*handle),
		keyLocks: make(map[Key]*sync.Mutex),
	}
}

// lockKey blocks until the caller owns k and returns the unlock func.
func (r *Registry) lockKey(k Key) func() {
	r.mu.Lock()
	l, ok := r.keyLocks[k]
	if !ok {
		l = &sync.Mutex{}
		r.keyLocks[k] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (r *Registry) get(k Key) (*handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[k]
	return h, ok
}

func (r *Registry) put(h *handle) {
	h.gen.Store(r.gen.Add(1))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.key] = h
}

// touch marks h as confirmed by the current arm, so a reconcile that
// started earlier will not prune it.
func (r *Registry) touch(h *handle) {
	h.gen.Store(r.gen.Add(1))
}

// current reports whether h is still the live handle for its key.
func (r *Registry) current(h *handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[h.key]
	return ok && cur == h
}

// generation is the gen of the most recently stored handle.
func (r *Registry) generation() uint64 {
	return r.gen.Load()
}

// remove drops h if it is still the live handle for its key.
func (r *Registry) remove(h *handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[h.key]; ok && cur == h {
		delete(r.handles, h.key)
		return true
	}
	return false
}

// snapshot returns the live handles ordered by key.
func (r *Registry) snapshot() []*handle {
	r.mu.Lock()
	out := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		if !h.cancelled.Load() {
			out = append(out, h)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].key.UserID != out[j].key.UserID {
			return out[i].key.UserID < out[j].key.UserID
		}
		return out[i].key.Category < out[j].key.Category
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
