// Package redis holds the optional outcome guard. A delivery outcome may be
// applied only by whoever first sets sms:outcome:<id>.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OutcomeGuard implements ports.OutcomeGuard with SETNX.
type OutcomeGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOutcomeGuard(rdb *redis.Client, ttl time.Duration) *OutcomeGuard {
	return &OutcomeGuard{rdb: rdb, ttl: ttl}
}

// NewClient builds a client and checks the connection with PING.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func outcomeKey(id uuid.UUID) string {
	return "sms:outcome:" + id.String()
}

func (g *OutcomeGuard) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, outcomeKey(id), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx outcome %s: %w", id, err)
	}
	return ok, nil
}

func (g *OutcomeGuard) Release(ctx context.Context, id uuid.UUID) error {
	if err := g.rdb.Del(ctx, outcomeKey(id)).Err(); err != nil {
		return fmt.Errorf("del outcome %s: %w", id, err)
	}
	return nil
}
