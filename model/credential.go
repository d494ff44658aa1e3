// model/credential.go
package model

import "time"

// CredentialRecord is the versioned secret owned by the external store.
// Previous holds the value that was current before the last rotation.
type CredentialRecord struct {
	SecretID  string    `json:"secret_id"`
	Current   string    `json:"current"`
	Previous  string    `json:"previous,omitempty"`
	RotatedAt time.Time `json:"rotated_at"`
}
