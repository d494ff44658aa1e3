// util/notification_service.go

package util

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
)

// OperatorAlert is one message on the operator channel.
type OperatorAlert struct {
	ID       string    `json:"id"`
	PoolID   string    `json:"pool_id"`
	Message  string    `json:"message"`
	Misses   int       `json:"consecutive_misses"`
	RaisedAt time.Time `json:"raised_at"`
}

// NotificationService is the operator channel. Alerts are logged at error
// level and kept in a bounded ring so operators can list recent ones.
type NotificationService struct {
	mu     sync.RWMutex
	recent []OperatorAlert
	limit  int
}

func NewNotificationService(limit int) *NotificationService {
	if limit <= 0 {
		limit = 100
	}
	return &NotificationService{limit: limit}
}

func (n *NotificationService) NotifyOperators(ctx context.Context, alert OperatorAlert) error {
	logger.Error("OPERATOR ALERT: "+alert.Message,
		zap.String("alertID", alert.ID),
		zap.String("pool", alert.PoolID),
		zap.Int("consecutiveMisses", alert.Misses),
		zap.Time("raisedAt", alert.RaisedAt))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.recent = append(n.recent, alert)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
	return nil
}

// Recent returns the retained alerts, newest last.
func (n *NotificationService) Recent() []OperatorAlert {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]OperatorAlert, len(n.recent))
	copy(out, n.recent)
	return out
}
