package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/pkg/domain"
)

func seed(tx domain.Transaction) error {
	if _, err := tx.CreatePerson(domain.Person{ID: "S1234567A", Name: "Alice", Age: 30, MaritalStatus: domain.MaritalMarried}); err != nil {
		return err
	}
	if _, err := tx.CreateProject(domain.Project{Name: "Acacia", OpenDate: domain.MustDate("1/2/2025"), CloseDate: domain.MustDate("28/2/2025")}); err != nil {
		return err
	}
	_, err := tx.InsertEnquiry(domain.Enquiry{AuthorID: "S1234567A", ProjectName: "Acacia", Messages: []domain.Message{{AuthorID: "S1234567A", Text: "hello"}}})
	return err
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListEnquiries()); got != 1 {
		t.Fatalf("expected 1 enquiry, got %d", got)
	}
	if reloaded.ExportState().NextTicketID != 2 {
		t.Fatalf("expected ticket counter to survive reload, got %d", reloaded.ExportState().NextTicketID)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %q", reloaded.Path())
	}
}

func TestSQLiteStoreReplaceWritesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	snapshot := memory.Snapshot{Persons: map[string]domain.Person{"p": {ID: "p", Name: "Pat", MaritalStatus: domain.MaritalSingle}}}
	if err := store.Replace(context.Background(), snapshot); err != nil {
		t.Fatalf("replace: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != len(memory.Buckets) {
		t.Fatalf("expected %d buckets, got %d", len(memory.Buckets), count)
	}
	_ = store.Close()
	reloaded, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	if _, ok := reloaded.GetPerson("p"); !ok {
		t.Fatalf("expected replaced person to persist")
	}
}

func TestSQLiteStoreRefusesUnreadablePersons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{ID: "S9999999Z", Name: "Zed", Age: 30})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidEnumValue) {
		t.Fatalf("expected missing marital status to be refused, got %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePerson(domain.Person{ID: "s9999999z", Name: "Zed", Age: 30, MaritalStatus: domain.MaritalSingle})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("committed state must reopen: %v", err)
	}
	defer func() { _ = reloaded.Close() }()
	if _, ok := reloaded.GetPerson("S9999999Z"); !ok {
		t.Fatalf("expected person stored under upper-cased id")
	}
}
