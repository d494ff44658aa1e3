package engine

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/metrics"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/pdp/cache"
	pdp_model "github.com/dev-mohitbeniwal/trackgate/pdp/model"
)

// SecretStore is the read side of the external secret store. A missing
// record is reported as errors.ErrSecretNotFound.
type SecretStore interface {
	GetCredential(ctx context.Context, secretID string) (*model.CredentialRecord, error)
}

type AuthorizerConfig struct {
	SecretID     string
	AllowTTL     time.Duration
	DenyTTL      time.Duration
	FetchTimeout time.Duration
}

// Authorizer decides whether a presented credential may pass. It is strictly
// allow-list: anything other than a match against the current or previous
// secret value is denied.
type Authorizer struct {
	store SecretStore
	cache *cache.VerdictCache
	cfg   AuthorizerConfig
}

func NewAuthorizer(store SecretStore, verdicts *cache.VerdictCache, cfg AuthorizerConfig) (*Authorizer, error) {
	if store == nil || verdicts == nil {
		return nil, fmt.Errorf("%w: authorizer needs a secret store and a verdict cache", gate_errors.ErrInvalidConfig)
	}
	if cfg.DenyTTL <= 0 || cfg.DenyTTL >= cfg.AllowTTL {
		return nil, fmt.Errorf("%w: deny TTL %s must be positive and shorter than allow TTL %s",
			gate_errors.ErrInvalidConfig, cfg.DenyTTL, cfg.AllowTTL)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("%w: fetch timeout must be positive", gate_errors.ErrInvalidConfig)
	}
	return &Authorizer{store: store, cache: verdicts, cfg: cfg}, nil
}

// Authorize evaluates one credential. It never returns an error: failures
// become deny verdicts carrying the reason.
func (a *Authorizer) Authorize(ctx context.Context, credential string) pdp_model.Verdict {
	verdict := a.authorize(ctx, credential)
	metrics.RecordVerdict(verdict.Allow, string(verdict.Reason))
	return verdict
}

func (a *Authorizer) authorize(ctx context.Context, credential string) pdp_model.Verdict {
	if credential == "" {
		logger.Debug("Authorization denied: no credential presented")
		return pdp_model.Deny(model.KindMissingCredential)
	}

	key := pdp_model.NewCacheKey(credential)
	entry, cached, err := a.cache.Resolve(ctx, key, func() (pdp_model.CacheEntry, error) {
		return a.resolve(ctx, key)
	})
	metrics.RecordCacheLookup(cached)
	if err != nil {
		logger.Warn("Authorization denied: secret store unavailable",
			zap.String("secretID", a.cfg.SecretID),
			zap.Error(err))
		return pdp_model.Deny(model.KindUpstreamUnavailable)
	}

	verdict := entry.Verdict()
	verdict.Cached = cached
	return verdict
}

// resolve fetches the record and builds a fresh cache entry. The fetch is
// detached from the caller's cancellation and bounded by FetchTimeout; its
// result is shared by every waiter on the key.
func (a *Authorizer) resolve(ctx context.Context, key pdp_model.CacheKey) (pdp_model.CacheEntry, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	record, err := a.store.GetCredential(fetchCtx, a.cfg.SecretID)
	metrics.RecordSecretFetch(time.Since(start).Seconds(), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("secret fetch timed out after %s: %w", a.cfg.FetchTimeout, err)
		}
		return pdp_model.CacheEntry{}, fmt.Errorf("%w: %w", gate_errors.ErrUpstreamUnavailable, err)
	}
	if record == nil {
		return pdp_model.CacheEntry{}, fmt.Errorf("%w: %w", gate_errors.ErrUpstreamUnavailable, gate_errors.ErrSecretNotFound)
	}

	now := a.cache.Now()
	if matches(key, record) {
		return pdp_model.CacheEntry{Allowed: true, ExpiresAt: now.Add(a.cfg.AllowTTL)}, nil
	}
	logger.Info("Authorization denied: credential mismatch", zap.String("secretID", a.cfg.SecretID))
	return pdp_model.CacheEntry{
		Allowed:   false,
		Reason:    model.KindCredentialMismatch,
		ExpiresAt: now.Add(a.cfg.DenyTTL),
	}, nil
}

// matches compares digests so the comparison length never depends on the
// presented value. Both slots are always compared.
func matches(key pdp_model.CacheKey, record *model.CredentialRecord) bool {
	current := sha256.Sum256([]byte(record.Current))
	hit := subtle.ConstantTimeCompare(key[:], current[:])

	previous := sha256.Sum256([]byte(record.Previous))
	prevHit := subtle.ConstantTimeCompare(key[:], previous[:])
	if record.Previous == "" {
		prevHit = 0
	}
	return hit|prevHit == 1
}

// Decider is what transports need from an authorizer.
type Decider interface {
	Authorize(ctx context.Context, credential string) pdp_model.Verdict
}

var _ Decider = (*Authorizer)(nil)
