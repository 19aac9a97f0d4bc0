package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
)

const keyPrefix = "smartstore:checkout:"

// Claim is what an idempotency key holds: the fingerprint of the checkout
// that reserved it and, once that checkout has committed, its response.
type Claim struct {
	Fingerprint string                   `json:"fingerprint"`
	Response    *domain.CheckoutResponse `json:"response,omitempty"`
}

// CheckoutReplayCache reserves idempotency keys before a checkout is applied
// so a retried request is answered without selling twice.
type CheckoutReplayCache interface {
	// Reserve claims key for a checkout with the given fingerprint. When key
	// is already held it returns the holder's claim and false.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Claim, bool, error)
	// Complete records the committed response under a reserved key.
	Complete(ctx context.Context, key string, claim Claim, ttl time.Duration) error
	// Release frees a key whose checkout failed.
	Release(ctx context.Context, key string) error
}

// LocalCheckoutReplayCache is the in-process fallback used when no redis is
// configured. Entries expire lazily on read.
type LocalCheckoutReplayCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]localEntry
}

type localEntry struct {
	claim     Claim
	expiresAt time.Time
}

func NewLocalCheckoutReplayCache() *LocalCheckoutReplayCache {
	return &LocalCheckoutReplayCache{now: time.Now, entries: make(map[string]localEntry)}
}

func (c *LocalCheckoutReplayCache) Reserve(_ context.Context, key, fingerprint string, ttl time.Duration) (Claim, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[keyPrefix+key]; ok && now.Before(entry.expiresAt) {
		return copyClaim(entry.claim), false, nil
	}
	c.entries[keyPrefix+key] = localEntry{claim: Claim{Fingerprint: fingerprint}, expiresAt: now.Add(ttl)}
	return Claim{}, true, nil
}

func (c *LocalCheckoutReplayCache) Complete(_ context.Context, key string, claim Claim, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyPrefix+key] = localEntry{claim: copyClaim(claim), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *LocalCheckoutReplayCache) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, keyPrefix+key)
	return nil
}

func copyClaim(claim Claim) Claim {
	if claim.Response == nil {
		return claim
	}
	resp := *claim.Response
	resp.Lines = append([]domain.SaleResult(nil), claim.Response.Lines...)
	claim.Response = &resp
	return claim
}
