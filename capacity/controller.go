package capacity

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

// Config holds the scaling policy shared by every pool.
type Config struct {
	ScaleOutThreshold float64
	ScaleInThreshold  float64
	ScaleOutCooldown  time.Duration
	ScaleInCooldown   time.Duration
	Step              int
}

// Controller turns one utilization sample into one scale decision. It holds
// no per-pool state; the caller owns the PoolState and must serialize calls
// for the same pool.
type Controller struct {
	cfg Config
	now func() time.Time
}

type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive", gate_errors.ErrInvalidConfig)
	}
	if cfg.ScaleInThreshold >= cfg.ScaleOutThreshold {
		return nil, fmt.Errorf("%w: scale-in threshold %.1f must be below scale-out threshold %.1f",
			gate_errors.ErrInvalidConfig, cfg.ScaleInThreshold, cfg.ScaleOutThreshold)
	}
	if cfg.ScaleOutCooldown < 0 || cfg.ScaleInCooldown < 0 {
		return nil, fmt.Errorf("%w: cooldowns must not be negative", gate_errors.ErrInvalidConfig)
	}
	c := &Controller{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Evaluate advances state by one step. A non-nil error always comes with a
// NoOp decision and an untouched state: ErrSampleMissing or
// ErrSampleMalformed for bad input, ErrPoolBoundsViolation if the state
// itself is broken.
func (c *Controller) Evaluate(sample *model.UtilizationSample, state *model.PoolState) (model.ScaleDecision, error) {
	if state == nil {
		return model.NoOp(), gate_errors.ErrPoolNotFound
	}
	if err := validateSample(sample, state.PoolID); err != nil {
		return model.NoOp(), err
	}
	if state.MinSize > state.MaxSize || !state.InBounds() {
		logger.Error("Pool state outside bounds",
			zap.String("pool", state.PoolID),
			zap.Int("size", state.CurrentSize),
			zap.Int("min", state.MinSize),
			zap.Int("max", state.MaxSize))
		return model.NoOp(), fmt.Errorf("%w: pool %s size %d not in [%d, %d]",
			gate_errors.ErrPoolBoundsViolation, state.PoolID, state.CurrentSize, state.MinSize, state.MaxSize)
	}

	now := c.now()
	switch state.Phase {
	case model.PhaseCoolingDownOut:
		if now.Sub(state.PhaseSince) < c.cfg.ScaleOutCooldown {
			return model.NoOp(), nil
		}
		state.Phase = model.PhaseStable
		state.PhaseSince = now
	case model.PhaseCoolingDownIn:
		if now.Sub(state.PhaseSince) < c.cfg.ScaleInCooldown {
			return model.NoOp(), nil
		}
		state.Phase = model.PhaseStable
		state.PhaseSince = now
	case model.PhaseStable:
	default:
		state.Phase = model.PhaseStable
		state.PhaseSince = now
	}

	return c.evaluateStable(sample.CPUPercent, state, now), nil
}

func (c *Controller) evaluateStable(utilization float64, state *model.PoolState, now time.Time) model.ScaleDecision {
	switch {
	case utilization >= c.cfg.ScaleOutThreshold:
		by := min(c.cfg.Step, state.MaxSize-state.CurrentSize)
		if by <= 0 {
			return model.NoOp()
		}
		state.CurrentSize += by
		state.Phase = model.PhaseCoolingDownOut
		state.PhaseSince = now
		state.LastScaleOut = now
		return model.ScaleOut(by)
	case utilization <= c.cfg.ScaleInThreshold && state.CurrentSize > state.MinSize:
		by := min(c.cfg.Step, state.CurrentSize-state.MinSize)
		state.CurrentSize -= by
		state.Phase = model.PhaseCoolingDownIn
		state.PhaseSince = now
		state.LastScaleIn = now
		return model.ScaleIn(by)
	default:
		return model.NoOp()
	}
}

func validateSample(sample *model.UtilizationSample, poolID string) error {
	if sample == nil {
		return gate_errors.ErrSampleMissing
	}
	switch {
	case sample.PoolID != poolID:
		return fmt.Errorf("%w: sample for pool %q evaluated against %q", gate_errors.ErrSampleMalformed, sample.PoolID, poolID)
	case math.IsNaN(sample.CPUPercent) || math.IsInf(sample.CPUPercent, 0):
		return fmt.Errorf("%w: utilization is not a number", gate_errors.ErrSampleMalformed)
	case sample.CPUPercent < 0 || sample.CPUPercent > 100:
		return fmt.Errorf("%w: utilization %.2f outside [0, 100]", gate_errors.ErrSampleMalformed, sample.CPUPercent)
	case sample.Timestamp.IsZero():
		return fmt.Errorf("%w: sample has no timestamp", gate_errors.ErrSampleMalformed)
	case sample.Window <= 0:
		return fmt.Errorf("%w: sampling window must be positive", gate_errors.ErrSampleMalformed)
	}
	return nil
}
