// Package session provides the session stores a tenant can be configured with.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leeforge/tenantkit/errors"
)

// Handler kinds.
const (
	HandlerFile = "file"
	HandlerDB   = "db"
)

// Security levels.
const (
	SecurityPermissive = "permissive"
	SecurityStrict     = "strict"
)

// Session error codes.
const (
	CodeSessionExpired  = "SESSION_EXPIRED"
	CodeSessionHijacked = "SESSION_ADDRESS_MISMATCH"
)

var (
	// ErrExpired is returned by a strict store for a session past its timeout.
	ErrExpired = errors.New(errors.ErrorTypeValidation, "session expired").WithCode(CodeSessionExpired)
	// ErrAddressMismatch is returned by a strict store when a session is
	// presented from another client address.
	ErrAddressMismatch = errors.New(errors.ErrorTypeValidation, "session bound to another address").WithCode(CodeSessionHijacked)
)

// Store persists opaque session payloads by id. Reading an unknown id
// returns nil data and no error.
type Store interface {
	Read(ctx context.Context, id string) ([]byte, error)
	Write(ctx context.Context, id string, data []byte) error
	Destroy(ctx context.Context, id string) error
	// GC removes sessions untouched for longer than maxLifetime and returns
	// how many were removed.
	GC(ctx context.Context, maxLifetime time.Duration) (int, error)
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type clientIPKey struct{}

// WithClientIP stores the requesting client's address in ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
