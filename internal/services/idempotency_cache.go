package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/models"
)

// IdempotencyCacheTTL binds an idempotency key to a Payment for at least
// 24h, per the glossary in spec.md.
const IdempotencyCacheTTL = 24 * time.Hour

// IdempotencyEntry is what the cache stores for a (merchantId, key) pair:
// enough to serve a replay without touching the store, plus a
// content-addressed hash of the original request body for the optional
// strict-mode conflict check (spec.md §9 / SPEC_FULL.md §11).
type IdempotencyEntry struct {
	PaymentID string `json:"paymentId"`
	BodyHash  string `json:"bodyHash"`
}

// IdempotencyCache fronts the (merchantId, idempotencyKey) -> paymentId
// lookup the Payment Service uses on intake.
type IdempotencyCache struct {
	db    *gorm.DB
	cache Cacher
}

func NewIdempotencyCache(db *gorm.DB, cache Cacher) *IdempotencyCache {
	return &IdempotencyCache{db: db, cache: cache}
}

func idempotencyCacheKey(merchantID, key string) string {
	return "idempotency:" + merchantID + ":" + key
}

// ErrNoPriorPayment means no payment exists yet for this key — the caller
// should proceed with intake.
var ErrNoPriorPayment = errors.New("no prior payment for idempotency key")

// Lookup returns the entry bound to (merchantId, key). Cache hit returns
// from cache; cache miss reads the store and back-populates the cache.
func (c *IdempotencyCache) Lookup(ctx context.Context, merchantID, key string) (*IdempotencyEntry, error) {
	key2 := idempotencyCacheKey(merchantID, key)

	entry, err := GetOrSet(c.cache, ctx, key2, IdempotencyCacheTTL, func() (IdempotencyEntry, error) {
		var payment models.Payment
		err := c.db.WithContext(ctx).
			Where("merchant_id = ? AND idempotency_key = ?", merchantID, key).
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return IdempotencyEntry{}, ErrNoPriorPayment
			}
			return IdempotencyEntry{}, err
		}
		return IdempotencyEntry{PaymentID: payment.ID}, nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put records a freshly-created payment's idempotency binding immediately
// after the intake transaction commits, so a concurrent replay hits cache
// instead of racing the store.
func (c *IdempotencyCache) Put(ctx context.Context, merchantID, key string, entry IdempotencyEntry) error {
	return c.cache.Set(ctx, idempotencyCacheKey(merchantID, key), entry, IdempotencyCacheTTL)
}
