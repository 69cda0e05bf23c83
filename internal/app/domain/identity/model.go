// Package identity defines the identity-verification collaborator's view.
package identity

import "time"

// Verification is the result of checking one member with the external
// identity collaborator.
type Verification struct {
	UserID          string
	Verified        bool
	UniquenessScore float64
	CheckedAt       time.Time
}
