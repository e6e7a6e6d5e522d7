package session

import (
	"context"
	"io"
	"time"

	"github.com/leeforge/tenantkit/json"
)

// Guard enforces the strict security level on top of a Store: a session is
// bound to the address that wrote it and expires after timeout of
// inactivity. A zero timeout disables expiry.
type Guard struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

type envelope struct {
	IP      string `json:"ip"`
	Touched int64  `json:"touched"`
	Data    []byte `json:"data"`
}

// NewGuard wraps store.
func NewGuard(store Store, timeout time.Duration) *Guard {
	return &Guard{store: store, timeout: timeout, now: time.Now}
}

// Unwrap returns the guarded store.
func (g *Guard) Unwrap() Store {
	return g.store
}

// Read returns the payload of id. A session presented from another address
// or past its timeout is destroyed and reported as an error.
func (g *Guard) Read(ctx context.Context, id string) ([]byte, error) {
	raw, err := g.store.Read(ctx, id)
	if err != nil || raw == nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		_ = g.store.Destroy(ctx, id)
		return nil, nil
	}

	switch {
	case env.IP != ClientIP(ctx):
		_ = g.store.Destroy(ctx, id)
		return nil, ErrAddressMismatch
	case g.timeout > 0 && g.now().Sub(time.Unix(0, env.Touched)) > g.timeout:
		_ = g.store.Destroy(ctx, id)
		return nil, ErrExpired
	}
	return env.Data, nil
}

func (g *Guard) Write(ctx context.Context, id string, data []byte) error {
	raw, err := json.Marshal(envelope{IP: ClientIP(ctx), Touched: g.now().UnixNano(), Data: data})
	if err != nil {
		return err
	}
	return g.store.Write(ctx, id, raw)
}

func (g *Guard) Destroy(ctx context.Context, id string) error {
	return g.store.Destroy(ctx, id)
}

func (g *Guard) GC(ctx context.Context, maxLifetime time.Duration) (int, error) {
	return g.store.GC(ctx, maxLifetime)
}

// Close closes the guarded store when it can be closed.
func (g *Guard) Close() error {
	if closer, ok := g.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
