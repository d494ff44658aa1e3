// test/mock/decider.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	pdp_model "github.com/dev-mohitbeniwal/trackgate/pdp/model"
)

// MockDecider is a mock implementation of engine.Decider
type MockDecider struct {
	mock.Mock
}

func (m *MockDecider) Authorize(ctx context.Context, credential string) pdp_model.Verdict {
	args := m.Called(ctx, credential)
	return args.Get(0).(pdp_model.Verdict)
}
