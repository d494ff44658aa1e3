package audit

import (
	"context"
	"fmt"

	"github.com/dev-mohitbeniwal/trackgate/capacity"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

// Subscribe writes denied requests, scale decisions and escalations to the
// audit trail.
func Subscribe(bus *util.EventBus, svc Service) {
	bus.Subscribe(util.TopicDenied, func(ctx context.Context, e util.Event) error {
		denied, ok := e.Payload.(util.DeniedRequest)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Type)
		}
		return svc.Record(ctx, AuditLog{
			Timestamp: denied.At,
			Kind:      KindVerdict,
			ClientIP:  denied.ClientIP,
			Path:      denied.Path,
			Allowed:   false,
			Reason:    denied.Reason,
		})
	})

	bus.Subscribe(util.TopicPoolScaled, func(ctx context.Context, e util.Event) error {
		scaled, ok := e.Payload.(capacity.ScaleEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Type)
		}
		return svc.Record(ctx, AuditLog{
			Timestamp:   scaled.At,
			Kind:        KindScale,
			PoolID:      scaled.PoolID,
			Decision:    scaled.Decision.String(),
			DesiredSize: scaled.DesiredSize,
		})
	})

	bus.Subscribe(util.TopicEscalation, func(ctx context.Context, e util.Event) error {
		alert, ok := e.Payload.(util.OperatorAlert)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Type)
		}
		return svc.Record(ctx, AuditLog{
			ID:        alert.ID,
			Timestamp: alert.RaisedAt,
			Kind:      KindEscalation,
			PoolID:    alert.PoolID,
			Message:   alert.Message,
		})
	})
}
