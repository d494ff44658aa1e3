package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"go.uber.org/zap"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

// PrometheusSource pulls pool CPU utilization with an instant query. The
// query template receives the pool id through a single %s verb and must
// yield a percentage.
type PrometheusSource struct {
	api    promv1.API
	query  string
	window time.Duration
	now    func() time.Time
}

func NewPrometheusSource(address, queryTemplate string, window time.Duration) (*PrometheusSource, error) {
	if strings.Count(queryTemplate, "%s") != 1 {
		return nil, fmt.Errorf("%w: prometheus query must contain exactly one %%s for the pool id",
			gate_errors.ErrInvalidConfig)
	}
	client, err := promapi.NewClient(promapi.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return &PrometheusSource{
		api:    promv1.NewAPI(client),
		query:  queryTemplate,
		window: window,
		now:    time.Now,
	}, nil
}

func (s *PrometheusSource) Name() string { return "prometheus" }

func (s *PrometheusSource) Sample(ctx context.Context, poolID string) (*model.UtilizationSample, error) {
	query := fmt.Sprintf(s.query, poolID)
	value, warnings, err := s.api.Query(ctx, query, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: prometheus query failed: %v", gate_errors.ErrSampleMissing, err)
	}
	for _, w := range warnings {
		logger.Warn("Prometheus query warning", zap.String("pool", poolID), zap.String("warning", w))
	}

	switch v := value.(type) {
	case prommodel.Vector:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty result for pool %s", gate_errors.ErrSampleMissing, poolID)
		}
		if len(v) > 1 {
			return nil, fmt.Errorf("%w: query returned %d series for pool %s, want 1",
				gate_errors.ErrSampleMalformed, len(v), poolID)
		}
		return s.sample(poolID, v[0].Timestamp, v[0].Value), nil
	case *prommodel.Scalar:
		return s.sample(poolID, v.Timestamp, v.Value), nil
	default:
		return nil, fmt.Errorf("%w: unexpected result type %s", gate_errors.ErrSampleMalformed, value.Type())
	}
}

func (s *PrometheusSource) sample(poolID string, ts prommodel.Time, v prommodel.SampleValue) *model.UtilizationSample {
	return &model.UtilizationSample{
		PoolID:     poolID,
		Timestamp:  ts.Time(),
		CPUPercent: float64(v),
		Window:     s.window,
	}
}
