package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Dedup struct {
	RDB     redis.Cmdable
	Service string
}

// Seen reports whether id was already processed by this service.
func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.RDB, fmt.Sprintf(KeyDedup, d.Service, id))
}

func (d *Dedup) Mark(ctx context.Context, id string) error {
	return d.RDB.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Err()
}
