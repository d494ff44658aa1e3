// test/mock/secret_store.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/trackgate/model"
)

// MockSecretStore is a mock implementation of engine.SecretStore
type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) GetCredential(ctx context.Context, secretID string) (*model.CredentialRecord, error) {
	args := m.Called(ctx, secretID)
	record, _ := args.Get(0).(*model.CredentialRecord)
	return record, args.Error(1)
}
