package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"inspectcore/pkg/domain"
)

func TestDSNEnablesForeignKeys(t *testing.T) {
	dsn := DSN("/tmp/x.db")
	for _, want := range []string{"file:/tmp/x.db?", "foreign_keys%281%29", "busy_timeout%285000%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "inspect.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
	var clientID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c, err := tx.CreateClient(domain.Client{Name: "Persist"})
		clientID = c.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	err = reloaded.View(context.Background(), func(v domain.TransactionView) error {
		c, ok := v.FindClient(clientID)
		if !ok || c.Name != "Persist" {
			t.Fatalf("expected persisted client, got %+v (found=%v)", c, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteStoreRejectsOrphanThroughEngine(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "inspect.db"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRoom(domain.Room{OrderID: "missing", Name: "Hall"})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
