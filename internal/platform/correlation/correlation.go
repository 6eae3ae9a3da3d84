// Package correlation tags contexts with an ID that every log line of one
// HTTP request or scheduler job carries.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const maxIDLength = 64

type (
	idKey  struct{}
	jobKey struct{}
)

// NewID generates an 8-character hex ID.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Valid reports whether a client-supplied ID is safe to reuse: 1 to 64
// characters of letters, digits, '-', '_' or '.'.
func Valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// ID extracts the correlation ID from ctx, returning ("", false) if not present.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

// StartJob gives a background job run its own ID and names the job, so
// "tick", "cooldown_gc" and "daily_reset" runs can be told apart in logs.
func StartJob(ctx context.Context, job string) context.Context {
	ctx = context.WithValue(ctx, jobKey{}, job)
	return WithID(ctx, NewID())
}

func Job(ctx context.Context) (string, bool) {
	job, ok := ctx.Value(jobKey{}).(string)
	return job, ok && job != ""
}

// Handler wraps a slog.Handler and adds "correlation_id" and "job"
// attributes from the context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if job, ok := Job(ctx); ok {
		r.AddAttrs(slog.String("job", job))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
