package keypool

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/al0nec0der/StrIve-sub000/internal/logging"
)

// ErrPoolExhausted is returned by Next when no credential qualifies.
var ErrPoolExhausted = errors.New("credential pool exhausted")

// Pool rotates requests across rating credentials while tracking daily quota
// and authorization health. The zero value is not usable; call New.
type Pool struct {
	mu     sync.Mutex
	creds  []Credential
	index  map[string]int
	cursor int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logging.NewComponentLogger(logger, "keypool")
	}
}

// New constructs a pool over the provided credentials.
func New(creds []Credential, opts ...Option) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	p := &Pool{
		creds:  make([]Credential, len(creds)),
		index:  make(map[string]int, len(creds)),
		now:    time.Now,
		logger: logging.NewComponentLogger(nil, "keypool"),
	}
	copy(p.creds, creds)
	for i, c := range p.creds {
		p.index[c.ID] = i
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Next returns the next usable credential in round-robin order. The cursor
// advances on every call, including calls that fail.
func (p *Pool) Next() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := len(p.creds)
	start := p.cursor
	p.cursor = (p.cursor + 1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		c := &p.creds[idx]
		p.liftExpired(c, now)
		if !usable(c) {
			continue
		}
		c.LastUsedAt = now
		p.cursor = (idx + 1) % n
		return *c, nil
	}
	return Credential{}, ErrPoolExhausted
}

// RecordSuccess counts one successful request against the credential's quota.
func (p *Pool) RecordSuccess(id string) {
	p.mu.Lock()
	c := p.lookup(id)
	if c == nil {
		p.mu.Unlock()
		return
	}
	if c.DailyUsage < c.DailyQuota {
		c.DailyUsage++
	}
	exhausted := c.DailyUsage >= c.DailyQuota && !c.QuotaExceeded
	if exhausted {
		c.Active = false
		c.QuotaExceeded = true
	}
	usage, quota := c.DailyUsage, c.DailyQuota
	p.mu.Unlock()

	if exhausted {
		p.logger.Info("rating credential reached daily quota",
			logging.String(logging.FieldCredential, id),
			logging.Int("daily_usage", usage),
			logging.Int("daily_quota", quota),
		)
	}
}

// RecordAuthFailure deactivates the credential until the next UTC midnight,
// regardless of its remaining quota.
func (p *Pool) RecordAuthFailure(id string) {
	p.mu.Lock()
	c := p.lookup(id)
	if c == nil {
		p.mu.Unlock()
		return
	}
	until := NextUTCMidnight(p.now())
	c.Active = false
	c.DeactivatedUntil = until
	c.AuthFailures++
	p.mu.Unlock()

	logging.WarnWithContext(p.logger, "rating credential rejected by provider", "credential_deactivated",
		logging.String(logging.FieldCredential, id),
		logging.Any("deactivated_until", until),
		logging.String(logging.FieldImpact, "credential excluded from rotation until next UTC day"),
		logging.String(logging.FieldErrorHint, "verify the key is valid and not suspended"),
	)
}

// RecordFailure notes a non-authorization failure for diagnostics only.
func (p *Pool) RecordFailure(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c := p.lookup(id); c != nil {
		c.Failures++
	}
}

// ResetDaily starts a new quota period: usage and quota flags are cleared and
// every credential is reactivated, including those deactivated by an
// authorization failure.
func (p *Pool) ResetDaily() {
	p.mu.Lock()
	for i := range p.creds {
		c := &p.creds[i]
		c.DailyUsage = 0
		c.QuotaExceeded = false
		c.DeactivatedUntil = time.Time{}
		c.Active = true
	}
	size := len(p.creds)
	p.mu.Unlock()

	p.logger.Info("rating credential quotas reset", logging.Int("credentials", size))
}

// Snapshot returns a copy of every credential record.
func (p *Pool) Snapshot() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	out := make([]Credential, len(p.creds))
	for i := range p.creds {
		p.liftExpired(&p.creds[i], now)
		out[i] = p.creds[i]
	}
	return out
}

// Size reports the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Usable reports how many credentials Next could currently return.
func (p *Pool) Usable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	count := 0
	for i := range p.creds {
		p.liftExpired(&p.creds[i], now)
		if usable(&p.creds[i]) {
			count++
		}
	}
	return count
}

func (p *Pool) lookup(id string) *Credential {
	idx, ok := p.index[id]
	if !ok {
		return nil
	}
	return &p.creds[idx]
}

func (p *Pool) liftExpired(c *Credential, now time.Time) {
	if c.DeactivatedUntil.IsZero() || now.Before(c.DeactivatedUntil) {
		return
	}
	c.DeactivatedUntil = time.Time{}
	if !c.QuotaExceeded {
		c.Active = true
	}
}

func usable(c *Credential) bool {
	return c.Active && !c.QuotaExceeded && c.DeactivatedUntil.IsZero() && c.DailyUsage < c.DailyQuota
}

// NextUTCMidnight returns the first UTC midnight strictly after t.
func NextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}
