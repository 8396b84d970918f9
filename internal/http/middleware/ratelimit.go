package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Brandon-Online01/w-f-sub001/internal/metrics"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// RateLimiter guarda um token bucket por chave dentro de um escopo (ip, sessao).
// Baldes parados há mais de maxAge saem na varredura; os de sessão saem também
// quando a credencial da sessão troca.
type RateLimiter struct {
	scope  string
	limit  rate.Limit
	burst  int
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter cria o limitador do escopo informado.
func NewRateLimiter(scope string, reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		scope:   scope,
		limit:   rate.Limit(reqPerSec),
		burst:   burst,
		maxAge:  10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consome um token da chave. Sem token, devolve quanto falta para o próximo.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := r.now()

	r.mu.Lock()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.seen = now
	r.sweep(now)
	r.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, r.maxAge
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// sweep roda com r.mu travado, no máximo uma vez a cada décimo de maxAge.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.maxAge/10 {
		return
	}
	r.lastSweep = now
	for key, b := range r.buckets {
		if now.Sub(b.seen) > r.maxAge {
			delete(r.buckets, key)
		}
	}
}

// Forget descarta o balde da chave.
func (r *RateLimiter) Forget(key string) {
	r.mu.Lock()
	delete(r.buckets, key)
	r.mu.Unlock()
}

// ForgetSession descarta o balde da sessão; a próxima credencial começa cheia.
func (r *RateLimiter) ForgetSession(id string) {
	r.Forget(sessionBucket(id))
}

func sessionBucket(id string) string {
	return "sessao:" + id
}

func (r *RateLimiter) middleware(keyFunc func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key, ok := keyFunc(req)
			if !ok || key == "" {
				next.ServeHTTP(w, req)
				return
			}

			if allowed, wait := r.Allow(key); !allowed {
				metrics.RateLimited.WithLabelValues(r.scope).Inc()
				w.Header().Set("Retry-After", retryAfter(wait))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Limite de requisições excedido")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// IPRateLimit limita por IP do cliente.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) (string, bool) {
		ip := clientIP(r)
		return ip, ip != ""
	})
}

// SessionRateLimit limita por sessão do navegador; sem sessão, não limita.
func SessionRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return limiter.middleware(func(r *http.Request) (string, bool) {
		id, _, ok := session.FromContext(r.Context())
		if !ok || id == "" {
			return "", false
		}
		return sessionBucket(id), true
	})
}

// clientIP lê RemoteAddr, já reescrito por chi middleware.RealIP no topo da cadeia.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
