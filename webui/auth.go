package webui

import (
	"errors"
	"net"
	"net/http"
	"time"

	"fin_backend/logging"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the hashing cost for the ops password. Cost 12 keeps a
// verification around a quarter second, slow enough to blunt guessing.
const bcryptCost = 12

var (
	// ErrEmptyPassword is returned when constructing a guard without a password.
	ErrEmptyPassword = errors.New("ops password cannot be empty")

	// ErrPasswordMismatch is returned when verification fails. It does not
	// reveal whether the stored hash was valid.
	ErrPasswordMismatch = errors.New("password does not match")
)

// PasswordGuard authenticates ops requests against a bcrypt hash of the
// configured password. The plaintext is hashed once at construction and
// never retained.
type PasswordGuard struct {
	hash    []byte
	limiter *RateLimiter
	logger  *logging.Logger
}

// NewPasswordGuard hashes the ops password and wires the brute-force
// limiter: 5 failures in 15 minutes block the address for 30 minutes.
func NewPasswordGuard(password string, logger *logging.Logger) (*PasswordGuard, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	return &PasswordGuard{
		hash:    hash,
		limiter: NewRateLimiter(5, 15*time.Minute, 30*time.Minute),
		logger:  logger.Named("auth"),
	}, nil
}

// Verify compares a presented password against the stored hash in constant
// time.
func (g *PasswordGuard) Verify(password string) error {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// Middleware wraps a handler with password authentication. The password
// arrives as HTTP Basic credentials (any username) or the X-Ops-Password
// header. Failed attempts feed the rate limiter.
func (g *PasswordGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)

		if allowed, remaining := g.limiter.Allow(addr); !allowed {
			g.logger.Warn("blocked authentication attempt",
				zap.String("remote", addr),
				zap.Duration("retry_after", remaining),
			)
			w.Header().Set("Retry-After", remaining.Round(time.Second).String())
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}

		password := r.Header.Get("X-Ops-Password")
		if password == "" {
			if _, basicPassword, ok := r.BasicAuth(); ok {
				password = basicPassword
			}
		}

		if password == "" || g.Verify(password) != nil {
			g.limiter.RecordFailure(addr)
			g.logger.Warn("rejected ops request", zap.String("remote", addr))
			w.Header().Set("WWW-Authenticate", `Basic realm="ops"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g.limiter.Reset(addr)
		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the remote host, dropping the ephemeral port so the
// rate limiter keys on the address alone.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
