// audit/service.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service interface {
	Record(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, from, to time.Time, kind Kind, poolID string) ([]AuditLog, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// Record fills in the id and timestamp when missing and stores the log.
func (s *service) Record(ctx context.Context, log AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = s.now().UTC()
	}
	return s.repo.Save(ctx, log)
}

func (s *service) QueryLogs(ctx context.Context, from, to time.Time, kind Kind, poolID string) ([]AuditLog, error) {
	return s.repo.QueryLogs(ctx, from, to, kind, poolID)
}
