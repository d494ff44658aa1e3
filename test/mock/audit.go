// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/trackgate/audit"
)

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Save(ctx context.Context, log audit.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) QueryLogs(ctx context.Context, from, to time.Time, kind audit.Kind, poolID string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, kind, poolID)
	return args.Get(0).([]audit.AuditLog), args.Error(1)
}
