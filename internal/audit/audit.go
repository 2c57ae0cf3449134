// Package audit provides an append-only log of authentication-relevant
// actions. Writes are best-effort: a failed audit insert is logged and never
// blocks the operation that triggered it.
package audit

import (
	"context"
	"net/http"
)

type Action string

const (
	ActionLogin          Action = "login"
	ActionVerifyToken    Action = "verify_token"
	ActionChangePassword Action = "change_password"
	ActionRegisterUser   Action = "register_user"
	ActionUpdateUser     Action = "update_user"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one audit record. Either UserID or Username identifies the actor;
// failed logins only know the attempted username.
type Entry struct {
	UserID   *int64
	Username string
	Action   Action
	Outcome  Outcome
	IP       string
}

// Recorder appends audit entries. Implementations must not return errors to
// callers; the primary operation always proceeds.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type ctxKey int

const clientIPKey ctxKey = 0

// WithClientIP stores the request's client IP so sinks can attach it to
// entries recorded deeper in the call stack.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by WithClientIP, if any.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// ClientIPMiddleware tags every request context with the caller's IP using
// the provided resolver.
func ClientIPMiddleware(resolve func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), resolve(r))))
	})
}
