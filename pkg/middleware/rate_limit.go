package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/van-reservations/internal/http/response"
	"github.com/diagnosis/van-reservations/pkg/logger"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
	SkipFunc func(r *http.Request) bool     // Function to skip rate limiting

	// TrustedProxies feeds the default KeyFunc; see ClientIP.
	TrustedProxies []netip.Prefix
}

// RateCounter increments the hit count for key and returns the count within
// the window that started at windowStart.
type RateCounter interface {
	Hit(ctx context.Context, key string, windowStart, expiresAt time.Time) (int, error)
}

type RateLimiter struct {
	counter RateCounter
	config  RateLimitConfig
	now     func() time.Time
}

func NewRateLimiter(counter RateCounter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKey(config.TrustedProxies)
	}
	return &RateLimiter{counter: counter, config: config, now: time.Now}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.config.Window.Seconds())))
					response.RateLimit(w, "Te veel aanvragen. Probeer het later opnieuw.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sum := sha256.Sum256([]byte(key))
	now := rl.now()

	count, err := rl.counter.Hit(ctx, fmt.Sprintf("%x", sum), now.Add(-rl.config.Window), now.Add(time.Hour))
	if err != nil {
		// fail open
		logger.WarnContext(ctx, "rate limit check failed", "error", err)
		return true
	}
	return count <= rl.config.Requests
}

// PostgresRateCounter keeps fixed-window counters in the rate_limits table.
type PostgresRateCounter struct {
	pool *pgxpool.Pool
}

func NewPostgresRateCounter(pool *pgxpool.Pool) *PostgresRateCounter {
	return &PostgresRateCounter{pool: pool}
}

func (p *PostgresRateCounter) Hit(ctx context.Context, key string, windowStart, expiresAt time.Time) (int, error) {
	const q = `
		INSERT INTO rate_limits (key, count, window_start, expires_at)
		VALUES ($1, 1, now(), $3)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start < $2 THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < $2 THEN now()
				ELSE rate_limits.window_start
			END,
			expires_at = $3
		RETURNING count`

	var count int
	err := p.pool.QueryRow(ctx, q, key, windowStart, expiresAt).Scan(&count)
	return count, err
}

// CleanupExpired deletes counters whose expiry has passed.
func (p *PostgresRateCounter) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rate_limits WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ParseTrustedProxies parses IPs and CIDR prefixes of reverse proxies whose
// forwarding headers may be believed.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// ClientIPKey rate limits by client address.
func ClientIPKey(trusted []netip.Prefix) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		if ip := ClientIP(r, trusted); ip != "" {
			return []string{"ip:" + ip}
		}
		return nil
	}
}

// ClientIP returns the peer address of r. X-Forwarded-For and X-Real-IP are
// only consulted when the peer is one of the trusted proxies.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer, trusted) {
		return host
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		// Walk right to left; the first hop not added by a trusted proxy is the client.
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				return host
			}
			if i == 0 || !isTrusted(addr, trusted) {
				return addr.Unmap().String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return host
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
