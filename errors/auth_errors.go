// errors/auth_errors.go
package errors

import "errors"

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrCredentialMismatch  = errors.New("credential mismatch")
	ErrUpstreamUnavailable = errors.New("secret store unavailable")
	ErrSecretNotFound      = errors.New("secret not found")
	ErrMalformedSecret     = errors.New("malformed secret record")
)
