// errors/capacity_errors.go
package errors

import "errors"

var (
	ErrSampleMissing       = errors.New("utilization sample missing")
	ErrSampleMalformed     = errors.New("utilization sample malformed")
	ErrPoolBoundsViolation = errors.New("pool size outside configured bounds")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrDuplicatePool       = errors.New("duplicate pool")
)
