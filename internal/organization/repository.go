package organization

import (
	"context"

	"github.com/atelierhq/atelier/internal/audit"
)

// Repository defines the interface for organization storage
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	// Update overwrites every mutable field of org.
	Update(ctx context.Context, org *Organization) error
}

// MembershipRepository defines the interface for organization membership storage
type MembershipRepository interface {
	AddMember(ctx context.Context, member *Member) error
}

// StoreProvider exposes the stores bound to one transaction.
type StoreProvider interface {
	Organizations() Repository
	Memberships() MembershipRepository
	Activity() audit.Sink
}

// TxRunner runs fn in a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}
