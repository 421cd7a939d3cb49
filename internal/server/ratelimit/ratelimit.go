// Package ratelimit limits expensive endpoints per client with token buckets.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EndpointConfig is the limit of one endpoint.
type EndpointConfig struct {
	Path   string // Exact path, or a prefix when it ends with "/"
	Method string
	Limit  int // Requests per Window
	Window time.Duration
	Burst  int // Defaults to Limit when 0
}

// Config holds rate limiting configuration. Endpoints without a matching
// EndpointConfig are unlimited.
type Config struct {
	Enabled   bool
	Endpoints []EndpointConfig
	// IdleTTL drops buckets of clients not seen for this long.
	IdleTTL time.Duration
}

// DefaultConfig limits publishing, which uploads to the provider, and
// token checks.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Endpoints: []EndpointConfig{
			{Path: "/publish", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
			{Path: "/validate-token", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
			{Path: "/render", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		},
		IdleTTL: time.Hour,
	}
}

// Match returns the configuration for path and method, or nil.
func Match(path, method string, configs []EndpointConfig) *EndpointConfig {
	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}
	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}
	return nil
}

// Info describes the limit applied to a request.
type Info struct {
	Allowed    bool
	Limit      int
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one bucket per client and endpoint.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a limiter. A nil config uses DefaultConfig.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Limiter{config: config, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow consumes a token for clientID on the endpoint.
func (l *Limiter) Allow(clientID, path, method string) Info {
	if !l.config.Enabled {
		return Info{Allowed: true}
	}
	ec := Match(path, method, l.config.Endpoints)
	if ec == nil || ec.Limit <= 0 || ec.Window <= 0 {
		return Info{Allowed: true}
	}

	now := l.now()
	key := clientID + " " + method + " " + ec.Path

	l.mu.Lock()
	l.evictLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		burst := ec.Burst
		if burst <= 0 {
			burst = ec.Limit
		}
		every := ec.Window / time.Duration(ec.Limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Info{Allowed: false, Limit: ec.Limit}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Info{Allowed: false, Limit: ec.Limit, RetryAfter: delay}
	}
	return Info{Allowed: true, Limit: ec.Limit}
}

// evictLocked drops idle buckets; l.mu must be held.
func (l *Limiter) evictLocked(now time.Time) {
	if l.config.IdleTTL <= 0 {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.config.IdleTTL {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
