package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// anonymousKey is the shared bucket for requests without an identifier
const anonymousKey = "_anonymous"

// LoginRateLimiter limits login attempts per workspace name. Exceeding the
// rate locks the name out for the configured lockout period.
type LoginRateLimiter struct {
	config config.RateLimitConfig
	clock  quartz.Clock
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*loginLimiter

	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// loginLimiter tracks rate limiting state for a single workspace name
type loginLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockoutEnd time.Time
}

// NewLoginRateLimiter creates a new rate limiter for the login endpoint
func NewLoginRateLimiter(cfg config.RateLimitConfig, clock quartz.Clock, logger *zap.Logger) *LoginRateLimiter {
	cfg.SetDefaults()
	return &LoginRateLimiter{
		config:          cfg,
		clock:           clock,
		logger:          logger.Named("login-ratelimit"),
		limiters:        make(map[string]*loginLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     clock.Now(),
	}
}

// getLimiter returns the limiter for an identifier, creating it if needed.
// Callers hold r.mu.
func (r *LoginRateLimiter) getLimiter(identifier string, now time.Time) *loginLimiter {
	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		r.cleanup(now)
	}

	limiter, exists := r.limiters[identifier]
	if exists {
		limiter.lastSeen = now
		return limiter
	}

	// Rate: MaxAttempts per WindowSeconds
	rateLimit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
	burst := int(math.Ceil(float64(r.config.MaxAttempts) / 2.0))
	if burst < 1 {
		burst = 1
	}

	limiter = &loginLimiter{
		limiter:  rate.NewLimiter(rateLimit, burst),
		lastSeen: now,
	}
	r.limiters[identifier] = limiter
	return limiter
}

// cleanup removes limiters that have not been used for a while
func (r *LoginRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	for key, limiter := range r.limiters {
		if limiter.lastSeen.Before(cutoff) && !now.Before(limiter.lockoutEnd) {
			delete(r.limiters, key)
		}
	}
	r.lastCleanup = now
}

// Allow reports whether a login attempt for identifier may proceed
func (r *LoginRateLimiter) Allow(identifier string) bool {
	if !r.config.Enabled {
		return true
	}
	if identifier == "" {
		identifier = anonymousKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	limiter := r.getLimiter(identifier, now)

	if now.Before(limiter.lockoutEnd) {
		return false
	}

	if !limiter.limiter.AllowN(now, 1) {
		lockout := time.Duration(r.config.LockoutSeconds) * time.Second
		limiter.lockoutEnd = now.Add(lockout)

		r.logger.Warn("Login rate limit exceeded, applying lockout",
			zap.String("workspace", identifier),
			zap.Duration("lockout_duration", lockout),
		)
		return false
	}
	return true
}

// RecordFailure makes a failed attempt cost one extra token
func (r *LoginRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}
	if identifier == "" {
		identifier = anonymousKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.getLimiter(identifier, now).limiter.AllowN(now, 1)
}

// LoginRateLimitMiddleware rejects login attempts over the limit with an
// empty 429. The workspace name is peeked from the body cached by
// BodyCache; failed logins (401) are charged through RecordFailure.
func LoginRateLimitMiddleware(rl *LoginRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := loginIdentifier(RawBody(c))
		if !rl.Allow(identifier) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized {
			rl.RecordFailure(identifier)
		}
	}
}

func loginIdentifier(body []byte) string {
	var req struct {
		Workspace string `json:"workspace"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.Workspace
}
