package collector

import (
	"context"

	"github.com/dev-mohitbeniwal/trackgate/model"
)

// Source produces utilization samples for a backend pool.
//
// Sample may block on network I/O and must honour ctx. A source that has
// nothing to report returns errors.ErrSampleMissing; callers treat any error
// as a missing sample.
type Source interface {
	// Name returns the unique name of this source (e.g. "prometheus", "push").
	Name() string

	// Sample returns the most recent observation for poolID.
	Sample(ctx context.Context, poolID string) (*model.UtilizationSample, error)
}
