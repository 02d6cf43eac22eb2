// File: internal/accounts/store.go

// Package accounts persists the credential roster the fleet runs against.
// Two backends exist: a JSON file for single-host setups and Postgres for
// shared deployments.
package accounts

import (
	"context"
	"errors"

	"github.com/avelaine/kzfleet/internal/schemas"
)

// ErrDuplicate is returned when adding an account whose email already
// exists in the store.
var ErrDuplicate = errors.New("account already exists")

// ErrNotFound is returned when an email has no stored account.
var ErrNotFound = errors.New("account not found")

// Store is the credential roster contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// List returns every stored account in a stable order.
	List(ctx context.Context) ([]schemas.Account, error)

	// Add stores a new account. Returns ErrDuplicate if the email is taken.
	Add(ctx context.Context, account schemas.Account) error

	// Remove deletes the account with the given email. Returns ErrNotFound
	// if it does not exist.
	Remove(ctx context.Context, email string) error

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)
}
