package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/envelope"
	"github.com/PaulBabatuyi/pairchat/internal/metrics"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// maxPeekBytes bounds how much of a request body is read to find the
// email used as the limiter key.
const maxPeekBytes = 64 << 10

// LimiterStore maintains per-key rate limiters and performs periodic cleanup.
type LimiterStore struct {
	mu              sync.Mutex
	limit           rate.Limit              // refill rate shared by every key
	burst           int                     // bucket size per key
	clients         map[string]*clientEntry // key -> limiter
	cleanupInterval time.Duration
	idleTTL         time.Duration // how long an unused key is kept
	stopOnce        sync.Once
	stopCh          chan struct{}
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a store of per-key limiters allowing
// limitPerMinute events per minute with the given burst. Keys idle for
// ten minutes are dropped every cleanupInterval.
func NewLimiterStore(limitPerMinute int, burst int, cleanupInterval time.Duration) *LimiterStore {
	// Fall back to sane defaults for unset config
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &LimiterStore{
		limit:           rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:           burst,
		clients:         map[string]*clientEntry{},
		cleanupInterval: cleanupInterval,
		idleTTL:         10 * time.Minute,
		stopCh:          make(chan struct{}),
	}
	// Background sweep runs until Stop
	go s.cleanupLoop()
	return s
}

func (s *LimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Drop keys idle longer than idleTTL
			s.sweep(time.Now().Add(-s.idleTTL))
		case <-s.stopCh:
			return
		}
	}
}

// sweep drops limiters not used since cutoff.
func (s *LimiterStore) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// getLimiter returns or creates a limiter for key
func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Existing key: refresh lastSeen so the sweep keeps it
	if e, ok := s.clients[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	// First request from this key gets a full bucket
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// Allow checks whether an event for the given key is permitted.
func (s *LimiterStore) Allow(key string) bool {
	return s.getLimiter(key).Allow()
}

// RateLimit limits requests per account. The key is the "email" field
// of a JSON body when present, so one address cannot be brute-forced
// from many hosts; otherwise it is the client IP. The body is restored
// for the next handler. endpoint labels the rejection metric.
func RateLimit(store *LimiterStore, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Default to the remote IP
			key := "ip:" + clientIP(r)
			// Prefer the email from the body to protect the account
			if email := peekEmail(r); email != "" {
				key = "email:" + email
			}

			// Over the limit: count it and answer 429
			if !store.Allow(key) {
				metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
				w.Header().Set("Retry-After", "60")
				envelope.Error(w, apperror.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads the email field from a JSON body and puts the bytes
// back so the body can be read again.
func peekEmail(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	// Read at most maxPeekBytes of the body
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	// Put the consumed bytes back in front of whatever is left
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	if err != nil {
		return ""
	}

	// Non-JSON bodies fall back to the IP key
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return normalize.Email(payload.Email)
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware
// runs earlier and rewrites RemoteAddr from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // no port present
	}
	return host
}
