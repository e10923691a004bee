// Package disabled provides the store used on platforms without durable
// storage. Every operation fails with a storage error so callers render the
// degraded-mode message instead of losing data silently.
package disabled

import (
	"context"

	"inspectcore/pkg/domain"
)

var _ domain.PersistentStore = Store{}

// Store rejects every operation.
type Store struct{}

// NewStore returns a disabled store.
func NewStore() Store { return Store{} }

func unavailable(op string) error {
	return &domain.Error{Kind: domain.KindStorage, Op: op, Message: "persistence is disabled on this platform", Cause: domain.ErrPersistenceDisabled}
}

// RunInTransaction always fails.
func (Store) RunInTransaction(context.Context, func(domain.Transaction) error) (domain.Result, error) {
	return domain.Result{}, unavailable("run_in_transaction")
}

// View always fails.
func (Store) View(context.Context, func(domain.TransactionView) error) error {
	return unavailable("view")
}

// Close is a no-op.
func (Store) Close() error { return nil }
