package model

import (
	"crypto/sha256"
	"time"

	"github.com/dev-mohitbeniwal/trackgate/model"
)

// CacheKey is the SHA-256 digest of a presented credential. The raw
// credential is never stored.
type CacheKey [sha256.Size]byte

func NewCacheKey(credential string) CacheKey {
	return sha256.Sum256([]byte(credential))
}

type CacheEntry struct {
	Allowed   bool
	Reason    model.ErrorKind
	ExpiresAt time.Time
}

func (e CacheEntry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func (e CacheEntry) Verdict() Verdict {
	return Verdict{Allow: e.Allowed, Reason: e.Reason, ExpiresAt: e.ExpiresAt, Cached: true}
}
