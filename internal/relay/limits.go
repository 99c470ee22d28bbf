package relay

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// tokenBucket is a simple refill-on-demand rate limiter.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
}

func newTokenBucket(ratePerSec float64, burst int) *tokenBucket {
	if ratePerSec < 0 {
		ratePerSec = 0
	}
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{
		tokens: float64(burst),
		last:   time.Now(),
		rate:   ratePerSec,
		burst:  float64(burst),
	}
}

func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

// ipLimiter rate-limits per client IP. A zero rate disables limiting.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   int
}

func newIPLimiter(ratePerMin int, burst int) *ipLimiter {
	rate := float64(ratePerMin) / 60.0
	if ratePerMin <= 0 {
		rate = 0
	}
	return &ipLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
	}
}

func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rate <= 0 {
		return true
	}
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = newTokenBucket(l.rate, l.burst)
		l.buckets[ip] = bucket
	}
	return bucket.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
