package ratelimit

import (
	"context"
	"time"
)

// Limiter counts attempts per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}
