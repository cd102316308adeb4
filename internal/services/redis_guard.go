package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"storefront-api/internal/database"

	"github.com/redis/go-redis/v9"
)

const (
	verifiedMarkerTTL = 24 * time.Hour
	webhookEventTTL   = 24 * time.Hour
)

// RedisGuard is the fast path in front of the database idempotency checks.
// It is advisory only: the database remains the source of truth, and every
// method degrades to a no-op when Redis is not configured.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a guard over the shared Redis client
func NewRedisGuard() *RedisGuard {
	return &RedisGuard{client: database.GetRedis()}
}

// MarkVerified records that a tx_ref completed verification successfully
func (g *RedisGuard) MarkVerified(ctx context.Context, txRef string) {
	if g.client == nil || txRef == "" {
		return
	}
	key := fmt.Sprintf("payment_verified:%s", txRef)
	g.client.Set(ctx, key, "1", verifiedMarkerTTL)
}

// IsVerified reports whether a tx_ref was recently verified. A miss means
// nothing: callers still have to consult the transaction ledger.
func (g *RedisGuard) IsVerified(ctx context.Context, txRef string) bool {
	if g.client == nil || txRef == "" {
		return false
	}
	key := fmt.Sprintf("payment_verified:%s", txRef)
	exists, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// SeenWebhookEvent atomically records a webhook event body and reports
// whether it was already processed, shielding the webhook handler from
// gateway redeliveries.
func (g *RedisGuard) SeenWebhookEvent(ctx context.Context, body []byte) bool {
	if g.client == nil {
		return false
	}
	digest := sha256.Sum256(body)
	key := fmt.Sprintf("webhook_event:%s", hex.EncodeToString(digest[:]))

	created, err := g.client.SetNX(ctx, key, "1", webhookEventTTL).Result()
	if err != nil {
		// On Redis failure process the event anyway, the transaction upsert
		// is idempotent
		return false
	}
	return !created
}
