package memory

import (
	"sync"
	"time"

	"ollama-chat-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository is the process-wide session table. It is bounded: once
// more than maxSessions are open, the evictBatch oldest-inserted sessions go.
//
// The table lock covers lookup, insert and eviction only. A session evicted
// while one of its turns is running finishes that turn on its own copy.
type SessionRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
	// insertion order, oldest first; may hold ids that already expired
	order []string

	maxSessions int
	evictBatch  int
}

// NewSessionRepository creates the table. idleTTL <= 0 disables idle expiry.
func NewSessionRepository(maxSessions, evictBatch int, idleTTL time.Duration) *SessionRepository {
	if maxSessions <= 0 {
		maxSessions = 100
	}
	if evictBatch <= 0 || evictBatch > maxSessions {
		evictBatch = max(1, maxSessions/2)
	}

	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if idleTTL > 0 {
		expiration = idleTTL
		cleanup = idleTTL / 2
	}

	return &SessionRepository{
		cache:       cache.New(expiration, cleanup),
		maxSessions: maxSessions,
		evictBatch:  evictBatch,
	}
}

// GetOrCreate returns the session for id, building it with newSession on
// first access. Racing callers for the same id get the same pointer.
func (r *SessionRepository) GetOrCreate(id string, newSession func() *store.Session) (*store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(id); found {
		// Touch to slide the idle expiry
		r.cache.Set(id, x, cache.DefaultExpiration)
		return x.(*store.Session), false
	}

	session := newSession()
	r.cache.Set(id, session, cache.DefaultExpiration)
	// An idle-expired id may still sit in order; it rejoins at the back.
	r.removeFromOrder(id)
	r.order = append(r.order, id)
	return session, true
}

func (r *SessionRepository) Get(id string) (*store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(id); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(id)
	r.removeFromOrder(id)
}

func (r *SessionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.ItemCount()
}

// EvictIfOverCapacity removes the oldest batch when the table is over its
// bound and returns the evicted ids. FIFO, not LRU.
func (r *SessionRepository) EvictIfOverCapacity() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneOrder()
	if len(r.order) <= r.maxSessions {
		return nil
	}

	n := min(r.evictBatch, len(r.order))
	evicted := make([]string, n)
	copy(evicted, r.order[:n])
	for _, id := range evicted {
		r.cache.Delete(id)
	}
	r.order = append([]string(nil), r.order[n:]...)
	return evicted
}

// pruneOrder drops ids whose entries idle-expired. Caller holds r.mu.
func (r *SessionRepository) pruneOrder() {
	live := r.order[:0]
	for _, id := range r.order {
		if _, found := r.cache.Get(id); found {
			live = append(live, id)
		}
	}
	r.order = live
}

func (r *SessionRepository) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
