package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/models"
)

// MerchantCacheTTL is the read-through cache lifetime for merchant lookups
// by API key hash (spec.md §4.2 step 1).
const MerchantCacheTTL = time.Hour

// MerchantLookup authenticates a merchant by apiKeyHash with a
// read-through Redis cache in front of the store, using the teacher's
// generic GetOrSet helper.
type MerchantLookup struct {
	db    *gorm.DB
	cache Cacher
}

func NewMerchantLookup(db *gorm.DB, cache Cacher) *MerchantLookup {
	return &MerchantLookup{db: db, cache: cache}
}

// ErrMerchantNotFound is returned when no merchant matches the hash.
var ErrMerchantNotFound = errors.New("merchant not found")

func merchantCacheKey(apiKeyHash string) string {
	return "merchant:" + apiKeyHash
}

// Lookup resolves a Merchant by the SHA-256 hash of its API key.
func (m *MerchantLookup) Lookup(ctx context.Context, apiKeyHash string) (*models.Merchant, error) {
	merchant, err := GetOrSet(m.cache, ctx, merchantCacheKey(apiKeyHash), MerchantCacheTTL, func() (models.Merchant, error) {
		var rec models.Merchant
		if err := m.db.WithContext(ctx).Where("api_key_hash = ?", apiKeyHash).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Merchant{}, ErrMerchantNotFound
			}
			return models.Merchant{}, err
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// Invalidate evicts a cached merchant lookup, used if a merchant's key is
// ever rotated.
func (m *MerchantLookup) Invalidate(ctx context.Context, apiKeyHash string) error {
	return m.cache.Delete(ctx, merchantCacheKey(apiKeyHash))
}
