package errors

import "errors"

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidRequest = errors.New("invalid request payload")
)
