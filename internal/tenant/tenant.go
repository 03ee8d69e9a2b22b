// Package tenant mints the local owner that imported rows are rebound to.
package tenant

import "github.com/google/uuid"

// Identity is the synthetic user and account created for one run.
type Identity struct {
	UserID    uuid.UUID `json:"user_id" yaml:"user_id"`
	AccountID uuid.UUID `json:"account_id" yaml:"account_id"`
}

// New returns an identity with fresh random ids. Nothing is checked against
// the target database.
func New() Identity {
	return Identity{
		UserID:    uuid.New(),
		AccountID: uuid.New(),
	}
}
