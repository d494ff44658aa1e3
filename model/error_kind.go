// model/error_kind.go
package model

import (
	"errors"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
)

// ErrorKind classifies why a verdict was denied or a sample was rejected.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindMissingCredential   ErrorKind = "MissingCredential"
	KindCredentialMismatch  ErrorKind = "CredentialMismatch"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindSampleMissing       ErrorKind = "SampleMissing"
	KindSampleMalformed     ErrorKind = "SampleMalformed"
	KindPoolBoundsViolation ErrorKind = "PoolBoundsViolation"
)

// KindOf maps a sentinel error onto its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, gate_errors.ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, gate_errors.ErrCredentialMismatch):
		return KindCredentialMismatch
	case errors.Is(err, gate_errors.ErrSampleMissing):
		return KindSampleMissing
	case errors.Is(err, gate_errors.ErrSampleMalformed):
		return KindSampleMalformed
	case errors.Is(err, gate_errors.ErrPoolBoundsViolation):
		return KindPoolBoundsViolation
	default:
		return KindUpstreamUnavailable
	}
}
