package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds configuration for rate limiting
type Config struct {
	RequestsPerSecond float64       // sustained requests per second
	BurstSize         int           // maximum burst size
	CleanupInterval   time.Duration // how often idle limiters are dropped; 0 means 5 minutes
}

// clientLimiter tracks a rate limiter and last seen time for cleanup
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per connection.
type Limiter struct {
	limiters    map[string]*clientLimiter
	mu          sync.Mutex
	config      Config
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a limiter with automatic cleanup of idle clients.
func New(config Config) *Limiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	l := &Limiter{
		limiters:    make(map[string]*clientLimiter),
		config:      config,
		stopCleanup: make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether the client may issue another request now.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, exists := l.limiters[clientID]
	if !exists {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[clientID] = cl
	}
	cl.lastSeen = time.Now()

	return cl.limiter.Allow()
}

// Forget drops a client's bucket, typically on disconnect.
func (l *Limiter) Forget(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, clientID)
}

// Count returns the number of tracked clients.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup removes limiters that haven't been used recently
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.config.CleanupInterval)
	for clientID, cl := range l.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(l.limiters, clientID)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}
