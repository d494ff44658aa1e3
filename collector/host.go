package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

// HostSource reports the CPU utilization of the machine the gateway runs
// on. It is meant for single-node setups where the backend shares the host.
type HostSource struct {
	measure time.Duration
	window  time.Duration
}

func NewHostSource(measure, window time.Duration) *HostSource {
	if measure <= 0 {
		measure = time.Second
	}
	return &HostSource{measure: measure, window: window}
}

func (s *HostSource) Name() string { return "host" }

func (s *HostSource) Sample(ctx context.Context, poolID string) (*model.UtilizationSample, error) {
	percents, err := cpu.PercentWithContext(ctx, s.measure, false)
	if err != nil {
		return nil, fmt.Errorf("%w: host cpu read failed: %v", gate_errors.ErrSampleMissing, err)
	}
	if len(percents) == 0 {
		return nil, fmt.Errorf("%w: host cpu returned no data", gate_errors.ErrSampleMissing)
	}
	return &model.UtilizationSample{
		PoolID:     poolID,
		Timestamp:  time.Now(),
		CPUPercent: percents[0],
		Window:     s.window,
	}, nil
}
