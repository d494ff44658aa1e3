package main

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/trackgate/dao"
	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

func TestRotateSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	secrets := dao.NewSecretDAO(client, "secret:")
	ctx := context.Background()
	require.NoError(t, secrets.PutCredential(ctx, model.CredentialRecord{SecretID: "mlflow-token", Current: "abc"}))

	t.Run("ReadsValueFromInput", func(t *testing.T) {
		require.NoError(t, rotateSecret(secrets, "mlflow-token", strings.NewReader("xyz\n")))

		record, err := secrets.GetCredential(ctx, "mlflow-token")
		require.NoError(t, err)
		assert.Equal(t, "xyz", record.Current)
		assert.Equal(t, "abc", record.Previous)
	})

	t.Run("EmptyInputIsRejected", func(t *testing.T) {
		err := rotateSecret(secrets, "mlflow-token", strings.NewReader("  \n"))
		assert.ErrorIs(t, err, gate_errors.ErrMalformedSecret)

		record, err := secrets.GetCredential(ctx, "mlflow-token")
		require.NoError(t, err)
		assert.Equal(t, "xyz", record.Current)
	})
}
