package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of the recorder counters.
type Snapshot struct {
	CacheHits       int64            `json:"cacheHits"`
	CacheMisses     int64            `json:"cacheMisses"`
	ExternalCalls   int64            `json:"externalCalls"`
	Fallbacks       int64            `json:"fallbacks"`
	Errors          int64            `json:"errors"`
	TotalRequests   int64            `json:"totalRequests"`
	TotalLatency    time.Duration    `json:"totalLatencyNs"`
	AverageLatency  time.Duration    `json:"averageLatencyNs"`
	CredentialUsage map[string]int64 `json:"credentialUsage"`
	Since           time.Time        `json:"since"`
}

// HitRate returns cache hits over cache lookups, or 0 with no lookups.
func (s Snapshot) HitRate() float64 {
	lookups := s.CacheHits + s.CacheMisses
	if lookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(lookups)
}

// FallbackRate returns fallbacks over total requests.
func (s Snapshot) FallbackRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.TotalRequests)
}

// ErrorRate returns errors over total requests.
func (s Snapshot) ErrorRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.TotalRequests)
}

// Recorder accumulates counters. The zero value is not usable; call New.
type Recorder struct {
	hits      atomic.Int64
	misses    atomic.Int64
	external  atomic.Int64
	fallbacks atomic.Int64
	errors    atomic.Int64
	requests  atomic.Int64
	latency   atomic.Int64

	mu          sync.Mutex
	credentials map[string]int64
	since       time.Time

	now  func() time.Time
	prom *promSet
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock injects the time source for Since.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRegistry mirrors every counter into collectors registered on reg.
func WithRegistry(reg *Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.prom = reg.set
		}
	}
}

// New returns an empty recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now, credentials: make(map[string]int64)}
	for _, opt := range opts {
		opt(r)
	}
	r.since = r.now()
	return r
}

// CacheHit counts a fresh rating served from the durable cache.
func (r *Recorder) CacheHit() {
	r.hits.Add(1)
	if r.prom != nil {
		r.prom.cacheHits.Inc()
	}
}

// CacheMiss counts a cache lookup that had to go to the provider.
func (r *Recorder) CacheMiss() {
	r.misses.Add(1)
	if r.prom != nil {
		r.prom.cacheMisses.Inc()
	}
}

// ExternalCall counts one request sent to the rating provider.
func (r *Recorder) ExternalCall() {
	r.external.Add(1)
	if r.prom != nil {
		r.prom.externalCalls.Inc()
	}
}

// Fallback counts a record served from the catalog's native rating.
func (r *Recorder) Fallback() {
	r.fallbacks.Add(1)
	if r.prom != nil {
		r.prom.fallbacks.Inc()
	}
}

// Error counts a lookup that ended with no rating from any source.
func (r *Recorder) Error() {
	r.errors.Add(1)
	if r.prom != nil {
		r.prom.errors.Inc()
	}
}

// ObserveLatency counts one completed request and its duration.
func (r *Recorder) ObserveLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.requests.Add(1)
	r.latency.Add(int64(d))
	if r.prom != nil {
		r.prom.requestDuration.Observe(d.Seconds())
	}
}

// CredentialUse counts one successful fetch served by credential id.
func (r *Recorder) CredentialUse(id string) {
	r.mu.Lock()
	r.credentials[id]++
	r.mu.Unlock()
	if r.prom != nil {
		r.prom.credentialUses.WithLabelValues(id).Inc()
	}
}

// BreakerState publishes a circuit breaker transition.
func (r *Recorder) BreakerState(name, state string) {
	if r.prom != nil {
		r.prom.setBreakerState(name, state)
	}
}

// Snapshot copies the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	usage := maps.Clone(r.credentials)
	since := r.since
	r.mu.Unlock()

	snap := Snapshot{
		CacheHits:       r.hits.Load(),
		CacheMisses:     r.misses.Load(),
		ExternalCalls:   r.external.Load(),
		Fallbacks:       r.fallbacks.Load(),
		Errors:          r.errors.Load(),
		TotalRequests:   r.requests.Load(),
		TotalLatency:    time.Duration(r.latency.Load()),
		CredentialUsage: usage,
		Since:           since,
	}
	if snap.TotalRequests > 0 {
		snap.AverageLatency = snap.TotalLatency / time.Duration(snap.TotalRequests)
	}
	return snap
}

// Reset zeroes the counters and restarts Since. Prometheus counters are
// monotonic and keep their values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits.Store(0)
	r.misses.Store(0)
	r.external.Store(0)
	r.fallbacks.Store(0)
	r.errors.Store(0)
	r.requests.Store(0)
	r.latency.Store(0)
	r.credentials = make(map[string]int64)
	r.since = r.now()
}
