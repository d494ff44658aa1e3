package capacity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/trackgate/capacity"
	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
	mocks "github.com/dev-mohitbeniwal/trackgate/test/mock"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

var loopConfig = capacity.LoopConfig{
	SampleInterval: time.Minute,
	SampleTimeout:  time.Second,
	EscalateAfter:  3,
}

type loopFixture struct {
	loop         *capacity.PoolLoop
	source       *mocks.MockSource
	orchestrator *mocks.MockOrchestrator
	publisher    *mocks.MockPublisher
	clock        *stepClock
}

func newLoop(t *testing.T, size int) *loopFixture {
	t.Helper()
	controller, clk := newController(t, defaultPolicy)
	f := &loopFixture{
		source:       new(mocks.MockSource),
		orchestrator: new(mocks.MockOrchestrator),
		publisher:    new(mocks.MockPublisher),
		clock:        clk,
	}
	loop, err := capacity.NewPoolLoop(*pool(size), controller, f.source, f.orchestrator, f.publisher, loopConfig)
	require.NoError(t, err)
	f.loop = loop
	return f
}

func TestNewPoolLoop_RejectsBadInitialState(t *testing.T) {
	controller, _ := newController(t, defaultPolicy)

	_, err := capacity.NewPoolLoop(*pool(7), controller, new(mocks.MockSource), new(mocks.MockOrchestrator), new(mocks.MockPublisher), loopConfig)
	assert.ErrorIs(t, err, gate_errors.ErrInvalidConfig)

	inverted := model.PoolState{PoolID: "mlflow", CurrentSize: 3, MinSize: 4, MaxSize: 2}
	_, err = capacity.NewPoolLoop(inverted, controller, new(mocks.MockSource), new(mocks.MockOrchestrator), new(mocks.MockPublisher), loopConfig)
	assert.ErrorIs(t, err, gate_errors.ErrInvalidConfig)
}

func TestTick_AppliesDecision(t *testing.T) {
	f := newLoop(t, 2)
	ctx := context.Background()

	f.source.On("Sample", mock.Anything, "mlflow").Return(sample(90), nil)
	f.orchestrator.On("Apply", mock.Anything, mock.MatchedBy(func(s model.PoolState) bool {
		return s.CurrentSize == 3 && s.Phase == model.PhaseCoolingDownOut
	}), model.ScaleOut(1)).Return(nil).Once()

	decision := f.loop.Tick(ctx)
	assert.Equal(t, model.ScaleOut(1), decision)
	assert.Equal(t, 3, f.loop.Snapshot().CurrentSize)

	// Cooling down: NoOp decisions never reach the orchestrator.
	assert.True(t, f.loop.Tick(ctx).IsNoOp())
	f.orchestrator.AssertExpectations(t)
	f.orchestrator.AssertNumberOfCalls(t, "Apply", 1)
}

func TestTick_OrchestratorFailureKeepsDecision(t *testing.T) {
	f := newLoop(t, 2)

	f.source.On("Sample", mock.Anything, "mlflow").Return(sample(90), nil)
	f.orchestrator.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("orchestrator down"))

	decision := f.loop.Tick(context.Background())
	assert.Equal(t, model.ScaleOut(1), decision)
	assert.Equal(t, 3, f.loop.Snapshot().CurrentSize)
	assert.Equal(t, model.PhaseCoolingDownOut, f.loop.Snapshot().Phase)
}

func TestTick_MissingSampleHoldsState(t *testing.T) {
	f := newLoop(t, 4)
	before := f.loop.Snapshot()

	f.source.On("Sample", mock.Anything, "mlflow").Return(nil, gate_errors.ErrSampleMissing)

	assert.True(t, f.loop.Tick(context.Background()).IsNoOp())
	assert.Equal(t, before, f.loop.Snapshot())
	assert.Equal(t, 1, f.loop.ConsecutiveMisses())
	f.orchestrator.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_EscalatesOncePerStreak(t *testing.T) {
	f := newLoop(t, 4)
	ctx := context.Background()

	f.source.On("Sample", mock.Anything, "mlflow").Return(nil, errors.New("prometheus unreachable")).Times(5)
	f.publisher.On("Publish", mock.Anything, util.TopicEscalation, mock.MatchedBy(func(a util.OperatorAlert) bool {
		return a.PoolID == "mlflow" && a.Misses == loopConfig.EscalateAfter+1 && a.ID != ""
	})).Once()

	for i := 0; i < 5; i++ {
		assert.True(t, f.loop.Tick(ctx).IsNoOp())
	}
	assert.Equal(t, 5, f.loop.ConsecutiveMisses())
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)

	// A usable sample ends the streak; the next streak escalates again.
	f.source.On("Sample", mock.Anything, "mlflow").Return(sample(50), nil).Once()
	assert.True(t, f.loop.Tick(ctx).IsNoOp())
	assert.Equal(t, 0, f.loop.ConsecutiveMisses())

	f.source.On("Sample", mock.Anything, "mlflow").Return(nil, gate_errors.ErrSampleMissing)
	f.publisher.On("Publish", mock.Anything, util.TopicEscalation, mock.Anything).Once()
	for i := 0; i < loopConfig.EscalateAfter+1; i++ {
		f.loop.Tick(ctx)
	}
	f.publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestTick_EscalatesOnlyBeyondTolerance(t *testing.T) {
	f := newLoop(t, 4)
	ctx := context.Background()

	f.source.On("Sample", mock.Anything, "mlflow").Return(nil, gate_errors.ErrSampleMissing)
	for i := 0; i < loopConfig.EscalateAfter; i++ {
		assert.True(t, f.loop.Tick(ctx).IsNoOp())
	}
	assert.Equal(t, loopConfig.EscalateAfter, f.loop.ConsecutiveMisses())
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	f.publisher.On("Publish", mock.Anything, util.TopicEscalation, mock.Anything).Once()
	f.loop.Tick(ctx)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
	assert.Equal(t, 4, f.loop.Snapshot().CurrentSize)
}

func TestTick_MalformedSampleCountsAsMiss(t *testing.T) {
	f := newLoop(t, 4)
	bad := sample(250)
	f.source.On("Sample", mock.Anything, "mlflow").Return(bad, nil)

	assert.True(t, f.loop.Tick(context.Background()).IsNoOp())
	assert.Equal(t, 1, f.loop.ConsecutiveMisses())
	assert.Equal(t, 4, f.loop.Snapshot().CurrentSize)
}

func TestTick_SampleTimeout(t *testing.T) {
	f := newLoop(t, 4)
	f.source.On("Sample", mock.Anything, "mlflow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	assert.True(t, f.loop.Tick(context.Background()).IsNoOp())
	assert.Less(t, time.Since(start), 3*loopConfig.SampleTimeout)
	assert.Equal(t, 1, f.loop.ConsecutiveMisses())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newLoop(t, 2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
