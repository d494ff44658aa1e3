package capacity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/trackgate/capacity"
	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
	mocks "github.com/dev-mohitbeniwal/trackgate/test/mock"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

func states(ids ...string) []model.PoolState {
	out := make([]model.PoolState, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.PoolState{PoolID: id, CurrentSize: 2, MinSize: 2, MaxSize: 6})
	}
	return out
}

func TestNewManager(t *testing.T) {
	controller, _ := newController(t, defaultPolicy)

	t.Run("RejectsDuplicatePools", func(t *testing.T) {
		_, err := capacity.NewManager(states("a", "a"), controller, new(mocks.MockSource), new(mocks.MockOrchestrator), new(mocks.MockPublisher), loopConfig)
		assert.ErrorIs(t, err, gate_errors.ErrDuplicatePool)
	})

	t.Run("OrdersPoolsByID", func(t *testing.T) {
		m, err := capacity.NewManager(states("zeta", "alpha", "mid"), controller, new(mocks.MockSource), new(mocks.MockOrchestrator), new(mocks.MockPublisher), loopConfig)
		require.NoError(t, err)

		pools := m.Pools()
		require.Len(t, pools, 3)
		assert.Equal(t, "alpha", pools[0].PoolID)
		assert.Equal(t, "mid", pools[1].PoolID)
		assert.Equal(t, "zeta", pools[2].PoolID)
		assert.Equal(t, model.PhaseStable, pools[0].Phase)
	})
}

func TestManager_Snapshot(t *testing.T) {
	controller, _ := newController(t, defaultPolicy)
	source := new(mocks.MockSource)
	publisher := new(mocks.MockPublisher)
	m, err := capacity.NewManager(states("mlflow"), controller, source, capacity.NewEventOrchestrator(publisher), publisher, loopConfig)
	require.NoError(t, err)

	_, err = m.Snapshot("missing")
	assert.ErrorIs(t, err, gate_errors.ErrPoolNotFound)

	source.On("Sample", mock.Anything, "mlflow").Return(sample(90), nil)
	publisher.On("Publish", mock.Anything, util.TopicPoolScaled, mock.MatchedBy(func(e capacity.ScaleEvent) bool {
		return e.PoolID == "mlflow" && e.DesiredSize == 3 && e.Decision == model.ScaleOut(1)
	})).Once()

	loop, ok := m.Loop("mlflow")
	require.True(t, ok)
	loop.Tick(context.Background())

	state, err := m.Snapshot("mlflow")
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentSize)
	publisher.AssertExpectations(t)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	controller, _ := newController(t, defaultPolicy)
	m, err := capacity.NewManager(states("a", "b"), controller, new(mocks.MockSource), new(mocks.MockOrchestrator), new(mocks.MockPublisher), loopConfig)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx))
}
