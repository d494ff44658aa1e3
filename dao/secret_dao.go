// dao/secret_dao.go
package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

// SecretDAO reads and rotates credential records in Redis. Each record is
// a JSON document stored under <prefix><secretID>.
type SecretDAO struct {
	Client    *redis.Client
	KeyPrefix string
}

func NewSecretDAO(client *redis.Client, keyPrefix string) *SecretDAO {
	return &SecretDAO{Client: client, KeyPrefix: keyPrefix}
}

func (dao *SecretDAO) key(secretID string) string {
	return dao.KeyPrefix + secretID
}

// GetCredential returns the current record for secretID, or
// ErrSecretNotFound when the key does not exist.
func (dao *SecretDAO) GetCredential(ctx context.Context, secretID string) (*model.CredentialRecord, error) {
	raw, err := dao.Client.Get(ctx, dao.key(secretID)).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Warn("Credential record not found", zap.String("secretID", secretID))
		return nil, fmt.Errorf("%w: %s", gate_errors.ErrSecretNotFound, secretID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read credential record: %w", err)
	}

	var record model.CredentialRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", gate_errors.ErrMalformedSecret, err)
	}
	if record.Current == "" {
		return nil, fmt.Errorf("%w: empty current value", gate_errors.ErrMalformedSecret)
	}
	record.SecretID = secretID

	logger.Debug("Credential record fetched",
		zap.String("secretID", secretID),
		zap.Time("rotatedAt", record.RotatedAt))
	return &record, nil
}

// PutCredential overwrites a record unconditionally.
func (dao *SecretDAO) PutCredential(ctx context.Context, record model.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal credential record: %w", err)
	}
	if err := dao.Client.Set(ctx, dao.key(record.SecretID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write credential record: %w", err)
	}
	return nil
}

const maxRotateAttempts = 16

// Rotate moves the current value to previous and installs next as current.
// The read and the write run in one WATCH/MULTI transaction, so concurrent
// rotations are applied one after another and never drop a value.
func (dao *SecretDAO) Rotate(ctx context.Context, secretID, next string) error {
	if next == "" {
		return fmt.Errorf("%w: empty next value", gate_errors.ErrMalformedSecret)
	}
	key := dao.key(secretID)

	var rotated model.CredentialRecord
	txf := func(tx *redis.Tx) error {
		rotated = model.CredentialRecord{SecretID: secretID, Current: next, RotatedAt: time.Now().UTC()}

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to read credential record: %w", err)
		default:
			var existing model.CredentialRecord
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("%w: %v", gate_errors.ErrMalformedSecret, err)
			}
			rotated.Previous = existing.Current
		}

		data, err := json.Marshal(rotated)
		if err != nil {
			return fmt.Errorf("failed to marshal credential record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxRotateAttempts; attempt++ {
		err := dao.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logger.Debug("Credential record changed during rotation, retrying",
				zap.String("secretID", secretID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return err
		}
		logger.Info("Credential rotated",
			zap.String("secretID", secretID),
			zap.Bool("hadPrevious", rotated.Previous != ""),
			zap.Time("rotatedAt", rotated.RotatedAt))
		return nil
	}
	return fmt.Errorf("credential rotation for %s kept conflicting after %d attempts", secretID, maxRotateAttempts)
}
