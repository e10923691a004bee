package disabled

import (
	"context"
	"errors"
	"testing"

	"inspectcore/pkg/domain"
)

func TestDisabledStoreRejectsEverything(t *testing.T) {
	store := NewStore()
	called := false
	_, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("transaction body must not run")
	}
	if !domain.IsStorage(err) || !errors.Is(err, domain.ErrPersistenceDisabled) {
		t.Fatalf("expected disabled storage error, got %v", err)
	}
	err = store.View(context.Background(), func(domain.TransactionView) error {
		called = true
		return nil
	})
	if called || !errors.Is(err, domain.ErrPersistenceDisabled) {
		t.Fatalf("expected disabled view, got %v", err)
	}
	if domain.UserMessage(err) == "" {
		t.Fatalf("expected a user-facing message")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
