package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"housingcore/pkg/domain"
)

func seedStore(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, p := range []domain.Person{
			{ID: "S1234567A", Name: "Alice", Age: 30, MaritalStatus: domain.MaritalMarried},
			{ID: "S7654321B", Name: "Bob", Age: 40, MaritalStatus: domain.MaritalSingle},
			{ID: "T0000001M", Name: "Mona", Age: 45, MaritalStatus: domain.MaritalMarried, Role: domain.RoleManager},
		} {
			if _, err := tx.CreatePerson(p); err != nil {
				return err
			}
		}
		for _, name := range []string{"Acacia Breeze", "Bukit Vista"} {
			if _, err := tx.CreateProject(domain.Project{
				Name:      name,
				ManagerID: "T0000001M",
				OpenDate:  domain.MustDate("1/2/2025"),
				CloseDate: domain.MustDate("28/2/2025"),
				Units: map[domain.UnitCategory]domain.UnitInventory{
					domain.UnitTwoRoom: {Remaining: 2, Price: 350000},
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindHousingRequest("missing"); ok {
			t.Fatalf("expected missing request lookup")
		}
		created, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: "S1234567A", ProjectName: "acacia breeze", Category: domain.UnitTwoRoom})
		if err != nil {
			return err
		}
		if created.ID == "" || created.Seq == 0 {
			t.Fatalf("expected generated id and sequence, got %+v", created)
		}
		if created.ProjectName != "Acacia Breeze" {
			t.Fatalf("expected canonical project name, got %q", created.ProjectName)
		}
		if created.Status != domain.RequestPending || created.Withdrawal != domain.WithdrawalNotRequested {
			t.Fatalf("unexpected defaults: %+v", created)
		}
		if len(tx.RequestsByApplicant("S1234567A")) != 1 {
			t.Fatalf("transaction view mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListHousingRequests()) != 1 {
		t.Fatalf("expected persisted request")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListHousingRequests()) != 0 || len(store.ListPersons()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListHousingRequests()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: "S1234567A", ProjectName: "Acacia Breeze"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := len(store.ListHousingRequests()); n != 0 {
		t.Fatalf("expected no partial insert, found %d requests", n)
	}
	err = store.View(context.Background(), func(v domain.TransactionView) error {
		if len(v.RequestsByApplicant("S1234567A")) != 0 || len(v.RequestsByProject("Acacia Breeze")) != 0 {
			return fmt.Errorf("owner indexes leaked from failed transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	seedStore(t, store)
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: "S1234567A", ProjectName: "Acacia Breeze"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListHousingRequests()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}})
	return res, nil
}

func TestOwnerListsAreNewestFirst(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	clock := time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return clock })
	ctx := context.Background()

	var ids []string
	var tickets []int
	for i, project := range []string{"Acacia Breeze", "Bukit Vista", "Acacia Breeze"} {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			r, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: "S7654321B", ProjectName: project, Status: domain.RequestUnsuccessful})
			if err != nil {
				return err
			}
			ids = append(ids, r.ID)
			e, err := tx.InsertEnquiry(domain.Enquiry{AuthorID: "S7654321B", ProjectName: project, Messages: []domain.Message{{AuthorID: "S7654321B", Text: fmt.Sprintf("q%d", i)}}})
			if err != nil {
				return err
			}
			tickets = append(tickets, e.ID)
			return nil
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	err := store.View(ctx, func(v domain.TransactionView) error {
		byApplicant := v.RequestsByApplicant("S7654321B")
		if len(byApplicant) != 3 || byApplicant[0].ID != ids[2] || byApplicant[2].ID != ids[0] {
			return fmt.Errorf("applicant list not newest first: %+v", byApplicant)
		}
		byProject := v.RequestsByProject("ACACIA BREEZE")
		if len(byProject) != 2 || byProject[0].ID != ids[2] {
			return fmt.Errorf("project list not newest first: %+v", byProject)
		}
		enquiries := v.EnquiriesByAuthor("S7654321B")
		if enquiries[0].ID != tickets[2] || enquiries[0].Opening() != "q2" {
			return fmt.Errorf("enquiry list not newest first: %+v", enquiries)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if tickets[0] != 1 || tickets[1] != 2 || tickets[2] != 3 {
		t.Fatalf("expected sequential ticket ids, got %v", tickets)
	}

	// Identical timestamps: order survives a round trip through Seq.
	store.ImportState(store.ExportState())
	err = store.View(ctx, func(v domain.TransactionView) error {
		if got := v.RequestsByApplicant("S7654321B"); got[0].ID != ids[2] || got[1].ID != ids[1] {
			return fmt.Errorf("reloaded order mismatch: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view after reload: %v", err)
	}
}

func TestTicketNumbersAreNeverReused(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	ctx := context.Background()
	post := func() int {
		var id int
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			e, err := tx.InsertEnquiry(domain.Enquiry{AuthorID: "S1234567A", ProjectName: "Bukit Vista", Messages: []domain.Message{{AuthorID: "S1234567A", Text: "hello"}}})
			id = e.ID
			return err
		})
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return id
	}
	first := post()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteEnquiry(first) }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if second := post(); second == first {
		t.Fatalf("ticket id %d reused after delete", first)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteEnquiry(99) })
	if !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestInsertRejectsUnknownReferences(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.InsertAssignmentRequest(domain.AssignmentRequest{OfficerID: "ghost", ProjectName: "Acacia Breeze"})
		return err
	})
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) || notFound.Entity != domain.EntityPerson {
		t.Fatalf("expected person not found, got %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.InsertEnquiry(domain.Enquiry{AuthorID: "S1234567A", ProjectName: "Nowhere", Messages: []domain.Message{{Text: "x"}}})
		return err
	})
	if !errors.As(err, &notFound) || notFound.Entity != domain.EntityProject {
		t.Fatalf("expected project not found, got %v", err)
	}
}

func TestUpdatesKeepIdentityFields(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		r, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: "S1234567A", ProjectName: "Acacia Breeze"})
		if err != nil {
			return err
		}
		updated, err := tx.UpdateHousingRequest(r.ID, func(hr *domain.HousingRequest) error {
			hr.ApplicantID = "S7654321B"
			hr.Status = domain.RequestSuccessful
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ApplicantID != "S1234567A" || updated.Status != domain.RequestSuccessful {
			t.Fatalf("unexpected update result: %+v", updated)
		}
		if _, err := tx.UpdateProject("acacia breeze", func(p *domain.Project) error {
			p.Name = "Renamed"
			p.Visible = true
			return nil
		}); err != nil {
			return err
		}
		p, ok := tx.FindProject("Acacia Breeze")
		if !ok || !p.Visible {
			t.Fatalf("expected project update under original name: %+v", p)
		}
		if err := tx.DeleteProject("Acacia Breeze"); err == nil {
			t.Fatalf("expected delete of referenced project to fail")
		}
		return tx.DeleteProject("Bukit Vista")
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if _, ok := store.GetProject("bukit vista"); ok {
		t.Fatalf("expected project deleted")
	}
}

func TestFindPersonByNameIsCaseInsensitive(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		p, ok := v.FindPersonByName("  alice ")
		if !ok || p.ID != "S1234567A" {
			return fmt.Errorf("lookup by name failed: %+v", p)
		}
		if _, ok := v.FindPersonByName("carol"); ok {
			return fmt.Errorf("unexpected match")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCreatePersonNormalisesAndChecksEnums(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		p, err := tx.CreatePerson(domain.Person{ID: " s9999999z ", Name: "Zed", Age: 30, MaritalStatus: domain.MaritalSingle})
		if err != nil {
			return err
		}
		if p.ID != "S9999999Z" || p.Role != domain.RoleApplicant {
			return fmt.Errorf("unexpected person %+v", p)
		}
		if _, err := tx.CreatePerson(domain.Person{ID: "S9999999Z", Name: "Twin", MaritalStatus: domain.MaritalSingle}); err == nil {
			return fmt.Errorf("expected duplicate id to fail")
		}
		if _, ok := tx.FindPerson("s9999999z"); !ok {
			return fmt.Errorf("expected lookup to ignore case")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	for _, p := range []domain.Person{
		{ID: "S8888888Y", Name: "NoStatus"},
		{ID: "S8888888Y", Name: "BadRole", MaritalStatus: domain.MaritalSingle, Role: "janitor"},
	} {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.CreatePerson(p)
			return err
		})
		if !errors.Is(err, domain.ErrInvalidEnumValue) {
			t.Fatalf("%s: expected ErrInvalidEnumValue, got %v", p.Name, err)
		}
	}
	if _, ok := store.GetPerson("S8888888Y"); ok {
		t.Fatalf("rejected person was stored")
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson("s9999999z", func(p *domain.Person) error {
			p.MaritalStatus = ""
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidEnumValue) {
		t.Fatalf("expected update clearing marital status to fail, got %v", err)
	}
	if p, _ := store.GetPerson("S9999999Z"); p.MaritalStatus != domain.MaritalSingle {
		t.Fatalf("failed update leaked: %+v", p)
	}
}
