package model

import (
	"net/http"
	"time"

	"github.com/dev-mohitbeniwal/trackgate/model"
)

// Verdict is the outcome of one authorization check.
type Verdict struct {
	Allow     bool            `json:"allow"`
	Reason    model.ErrorKind `json:"reason,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Cached    bool            `json:"-"`
}

func Allow(expiresAt time.Time) Verdict {
	return Verdict{Allow: true, ExpiresAt: expiresAt}
}

func Deny(reason model.ErrorKind) Verdict {
	return Verdict{Allow: false, Reason: reason}
}

// HTTPStatus maps the verdict onto the status an edge returns. Every deny is
// a terminal 401 or 403.
func (v Verdict) HTTPStatus() int {
	switch {
	case v.Allow:
		return http.StatusOK
	case v.Reason == model.KindMissingCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}
