package omr

import "sync"

// ResultTracker keeps the most recent graded sheets for the HTTP endpoints.
// Once full, the oldest result is evicted.
type ResultTracker struct {
	mu      sync.RWMutex
	limit   int
	order   []string // result IDs, oldest first
	results map[string]*Result
	latest  map[string]*Result // source -> newest result
}

// NewResultTracker creates a tracker holding at most limit results
func NewResultTracker(limit int) *ResultTracker {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &ResultTracker{
		limit:   limit,
		results: make(map[string]*Result),
		latest:  make(map[string]*Result),
	}
}

// Add stores a result
func (rt *ResultTracker) Add(r *Result) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.results[r.ID]; !ok {
		rt.order = append(rt.order, r.ID)
	}
	rt.results[r.ID] = r
	rt.latest[r.Source] = r

	for len(rt.order) > rt.limit {
		oldest := rt.order[0]
		rt.order = rt.order[1:]
		if old := rt.results[oldest]; old != nil && rt.latest[old.Source] == old {
			delete(rt.latest, old.Source)
		}
		delete(rt.results, oldest)
	}
}

// Get returns the result with the given ID
func (rt *ResultTracker) Get(id string) (*Result, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	r, ok := rt.results[id]
	return r, ok
}

// Latest returns the newest result per source
func (rt *ResultTracker) Latest() map[string]*Result {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make(map[string]*Result, len(rt.latest))
	for k, v := range rt.latest {
		out[k] = v
	}
	return out
}

// Len returns the number of stored results
func (rt *ResultTracker) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.order)
}
