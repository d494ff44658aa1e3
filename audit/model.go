// audit/model.go
package audit

import (
	"time"
)

type Kind string

const (
	KindVerdict    Kind = "verdict"
	KindScale      Kind = "scale"
	KindEscalation Kind = "escalation"
)

// AuditLog is one audit trail document. Credentials never appear in it;
// verdict entries carry only the outcome and the client address.
type AuditLog struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        Kind      `json:"kind"`
	ClientIP    string    `json:"client_ip,omitempty"`
	Path        string    `json:"path,omitempty"`
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	PoolID      string    `json:"pool_id,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	DesiredSize int       `json:"desired_size,omitempty"`
	Message     string    `json:"message,omitempty"`
}
