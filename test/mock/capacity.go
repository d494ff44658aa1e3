// test/mock/capacity.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/trackgate/model"
)

// MockSource is a mock implementation of collector.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Sample(ctx context.Context, poolID string) (*model.UtilizationSample, error) {
	args := m.Called(ctx, poolID)
	sample, _ := args.Get(0).(*model.UtilizationSample)
	return sample, args.Error(1)
}

// MockOrchestrator is a mock implementation of capacity.Orchestrator
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) Apply(ctx context.Context, state model.PoolState, decision model.ScaleDecision) error {
	args := m.Called(ctx, state, decision)
	return args.Error(0)
}

// MockPublisher is a mock implementation of util.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	m.Called(ctx, eventType, payload)
}
