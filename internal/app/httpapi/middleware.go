package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/CommonsHub/community_layer/internal/app/metrics"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

type ctxKey string

const ctxUserKey ctxKey = "auth-user"

// UserFromContext returns the authenticated caller identity, if any.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserKey).(string); ok {
		return v
	}
	return ""
}

// unauthenticatedPaths bypass bearer auth so probes and scrapers work.
var unauthenticatedPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// AuthConfig controls bearer authentication. With no tokens and no JWT
// secret, authentication is disabled.
type AuthConfig struct {
	// Tokens are the accepted static bearer tokens.
	Tokens []string

	// JWTSecret, when set, additionally accepts HS256 JWTs carrying a
	// user_id claim.
	JWTSecret string
}

func (c AuthConfig) enabled() bool {
	return len(c.Tokens) > 0 || c.JWTSecret != ""
}

type jwtClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// WrapWithAuth enforces bearer authentication on every request except the
// unauthenticated paths.
func WrapWithAuth(next http.Handler, cfg AuthConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if !cfg.enabled() {
		log.Warn("bearer auth disabled; no tokens or JWT secret configured")
		return next
	}

	static := make(map[string]bool, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		if token = strings.TrimSpace(token); token != "" {
			static[token] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if unauthenticatedPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing Authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid Authorization header format"))
			return
		}
		token := parts[1]

		if static[token] {
			next.ServeHTTP(w, r)
			return
		}

		if cfg.JWTSecret != "" {
			claims, err := validateJWT(token, cfg.JWTSecret)
			if err == nil {
				ctx := context.WithValue(r.Context(), ctxUserKey, claims.UserID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			log.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
		}

		writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid bearer token"))
	})
}

func validateJWT(tokenString, secret string) (*jwtClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// rateLimiters hands out one token bucket per caller key.
type rateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *rateLimiters) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		// Crude bound on the key space; remote addresses churn.
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// WrapWithRateLimit applies a per-caller token bucket. The key is the
// authenticated user when present, otherwise the remote address.
func WrapWithRateLimit(next http.Handler, rps float64, burst int, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = int(rps)
	}
	rl := &rateLimiters{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := UserFromContext(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.get(key).Allow() {
			log.WithField("key", key).WithField("path", r.URL.Path).Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics and auditing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// WrapWithMetrics instruments requests with the Prometheus collectors. The
// path label is the first segment only, to keep cardinality bounded.
func WrapWithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPInFlight(1)
		defer metrics.HTTPInFlight(-1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, pathLabel(r.URL.Path), strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

func pathLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed
}

// recordAudit appends one audit entry per request.
func (h *handler) recordAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       UserFromContext(r.Context()),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}
