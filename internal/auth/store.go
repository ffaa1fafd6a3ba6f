package auth

import "context"

// Store describes the persistence the auth core touches: account records and
// the per-type ownership lookups. Implementations must be safe for
// concurrent use; "no such row" is ErrNotFound, anything else is an
// infrastructure failure.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	Ownership(ctx context.Context) OwnershipStore
}

// AccountStore manages account records.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)

	// UpdatePassword writes the new hash and the must-change flag in a
	// single statement so concurrent readers never observe one without the
	// other.
	UpdatePassword(ctx context.Context, accountID, passwordHash string, mustChange bool) error
	SetRole(ctx context.Context, accountID string, role Role) error
	SetActive(ctx context.Context, accountID string, active bool) error
}

// OwnershipStore resolves the recorded owner of a resource instance.
// ErrNotFound means the resource itself does not exist.
type OwnershipStore interface {
	FindResourceOwner(ctx context.Context, resourceType ResourceType, resourceID string) (string, error)
}
