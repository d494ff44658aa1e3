package capacity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/trackgate/collector"
	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/metrics"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

// LoopConfig is the cadence and failure policy of a pool loop.
type LoopConfig struct {
	SampleInterval time.Duration
	SampleTimeout  time.Duration
	// EscalateAfter is the number of consecutive missed ticks tolerated
	// silently; the first miss beyond it raises one operator alert.
	EscalateAfter int
}

// PoolLoop drives one pool. Ticks are serialized; the state can be read
// concurrently through Snapshot.
type PoolLoop struct {
	tickMu sync.Mutex

	mu    sync.RWMutex
	state model.PoolState

	controller   *Controller
	source       collector.Source
	orchestrator Orchestrator
	publisher    util.Publisher
	cfg          LoopConfig

	misses    int
	escalated bool
}

func NewPoolLoop(
	initial model.PoolState,
	controller *Controller,
	source collector.Source,
	orchestrator Orchestrator,
	publisher util.Publisher,
	cfg LoopConfig,
) (*PoolLoop, error) {
	if initial.MinSize > initial.MaxSize {
		return nil, fmt.Errorf("%w: pool %s min %d > max %d",
			gate_errors.ErrInvalidConfig, initial.PoolID, initial.MinSize, initial.MaxSize)
	}
	if !initial.InBounds() {
		return nil, fmt.Errorf("%w: pool %s initial size %d outside [%d, %d]",
			gate_errors.ErrInvalidConfig, initial.PoolID, initial.CurrentSize, initial.MinSize, initial.MaxSize)
	}
	if cfg.EscalateAfter < 0 {
		cfg.EscalateAfter = 0
	}
	if initial.Phase == "" {
		initial.Phase = model.PhaseStable
	}
	metrics.RecordPoolSize(initial.PoolID, initial.CurrentSize)
	return &PoolLoop{
		state:        initial,
		controller:   controller,
		source:       source,
		orchestrator: orchestrator,
		publisher:    publisher,
		cfg:          cfg,
	}, nil
}

// Run ticks until ctx is done.
func (l *PoolLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.SampleInterval)
	defer ticker.Stop()

	logger.Info("Capacity loop started",
		zap.String("pool", l.PoolID()),
		zap.String("source", l.source.Name()),
		zap.Duration("interval", l.cfg.SampleInterval))
	for {
		select {
		case <-ticker.C:
			l.Tick(ctx)
		case <-ctx.Done():
			logger.Info("Capacity loop stopped", zap.String("pool", l.PoolID()))
			return nil
		}
	}
}

func (l *PoolLoop) PoolID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.PoolID
}

// Snapshot returns a copy of the pool state.
func (l *PoolLoop) Snapshot() model.PoolState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Tick fetches one sample, evaluates it and applies the result. It never
// retries; the next attempt is the next tick.
func (l *PoolLoop) Tick(ctx context.Context) model.ScaleDecision {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	state := l.Snapshot()
	poolID := state.PoolID

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.SampleTimeout)
	sample, fetchErr := l.source.Sample(fetchCtx, poolID)
	cancel()
	if fetchErr != nil {
		sample = nil
	}

	decision, err := l.controller.Evaluate(sample, &state)
	if err != nil {
		if errors.Is(err, gate_errors.ErrPoolBoundsViolation) {
			logger.Error("Capacity evaluation skipped", zap.String("pool", poolID), zap.Error(err))
			return model.NoOp()
		}
		if fetchErr != nil {
			err = fetchErr
		}
		l.recordMiss(ctx, poolID, err)
		return model.NoOp()
	}

	l.misses = 0
	l.escalated = false

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()

	metrics.RecordScaleDecision(poolID, string(decision.Action))
	if decision.IsNoOp() {
		logger.Debug("Capacity evaluation",
			zap.String("pool", poolID),
			zap.Float64("cpu", sample.CPUPercent),
			zap.String("phase", string(state.Phase)))
		return decision
	}

	metrics.RecordPoolSize(poolID, state.CurrentSize)
	if err := l.orchestrator.Apply(ctx, state, decision); err != nil {
		logger.Error("Failed to apply scale decision",
			zap.String("pool", poolID),
			zap.String("decision", decision.String()),
			zap.Error(err))
	}
	return decision
}

func (l *PoolLoop) recordMiss(ctx context.Context, poolID string, cause error) {
	kind := model.KindSampleMissing
	if errors.Is(cause, gate_errors.ErrSampleMalformed) {
		kind = model.KindSampleMalformed
	}
	l.misses++
	metrics.RecordSampleRejected(poolID, string(kind))
	logger.Warn("No usable utilization sample, holding pool size",
		zap.String("pool", poolID),
		zap.String("kind", string(kind)),
		zap.Int("consecutiveMisses", l.misses),
		zap.Error(cause))

	if l.misses <= l.cfg.EscalateAfter || l.escalated {
		return
	}
	l.escalated = true
	metrics.RecordEscalation(poolID)
	l.publisher.Publish(ctx, util.TopicEscalation, util.OperatorAlert{
		ID:       uuid.NewString(),
		PoolID:   poolID,
		Message:  fmt.Sprintf("pool %s has had no usable utilization sample for %d consecutive ticks", poolID, l.misses),
		Misses:   l.misses,
		RaisedAt: time.Now(),
	})
}

// ConsecutiveMisses reports the current missing-sample streak.
func (l *PoolLoop) ConsecutiveMisses() int {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.misses
}
