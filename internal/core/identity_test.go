package core

import (
	"context"
	"strings"
	"testing"

	"housingcore/pkg/domain"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	created, _, err := svc.RegisterPerson(ctx, domain.Person{ID: "S3333333D", Name: "Dana", Age: 36, MaritalStatus: domain.MaritalSingle}, "password")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Role != domain.RoleApplicant {
		t.Fatalf("expected default applicant role, got %s", created.Role)
	}
	if created.PasswordHash == "" || created.PasswordHash == "password" {
		t.Fatalf("expected a bcrypt hash, got %q", created.PasswordHash)
	}

	got, err := svc.Authenticate(ctx, " S3333333D ", "password")
	if err != nil || got.ID != "S3333333D" {
		t.Fatalf("authenticate: %+v %v", got, err)
	}
	_, err = svc.Authenticate(ctx, "S3333333D", "wrong")
	expectErr(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "S0000000Z", "password")
	expectErr(t, err, domain.ErrInvalidCredentials)
	// Seeded persons carry no hash and cannot sign in until one is set.
	_, err = svc.Authenticate(ctx, alice, "")
	expectErr(t, err, domain.ErrInvalidCredentials)

	if _, _, err := svc.RegisterPerson(ctx, domain.Person{ID: "S3333333D", Name: "Dup", MaritalStatus: domain.MaritalSingle}, ""); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
	_, _, err = svc.RegisterPerson(ctx, domain.Person{ID: "S4444444E", Name: "Neg", Age: -1, MaritalStatus: domain.MaritalSingle}, "")
	expectErr(t, err, domain.ErrMalformedRecord)
}

func TestRegisterPersonNormalisesAndValidates(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	created, _, err := svc.RegisterPerson(ctx, domain.Person{ID: " s9999999z ", Name: "Zed", Age: 30, MaritalStatus: domain.MaritalSingle}, "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID != "S9999999Z" {
		t.Fatalf("expected upper-cased id, got %q", created.ID)
	}
	for _, id := range []string{"s9999999z", "S9999999Z"} {
		if _, err := svc.Authenticate(ctx, id, "pw"); err != nil {
			t.Fatalf("authenticate %s: %v", id, err)
		}
	}
	if _, _, err := svc.RegisterPerson(ctx, domain.Person{ID: "S9999999Z", Name: "Twin", Age: 30, MaritalStatus: domain.MaritalSingle}, ""); err == nil {
		t.Fatalf("expected case-folded duplicate to fail")
	}

	bad := []domain.Person{
		{ID: "S8888888Y", Name: "NoStatus", Age: 30},
		{ID: "X8888888Y", Name: "BadID", Age: 30, MaritalStatus: domain.MaritalSingle},
		{ID: "S8888888Y", Name: "BadRole", Age: 30, MaritalStatus: domain.MaritalSingle, Role: "janitor"},
	}
	for _, p := range bad {
		_, _, err := svc.RegisterPerson(ctx, p, "pw")
		expectErr(t, err, domain.ErrMalformedRecord)
		if _, ok := svc.FetchByUniqueID(ctx, p.ID); ok {
			t.Fatalf("%s: rejected person was stored", p.Name)
		}
	}
}

// unreadableStore fails every read.
type unreadableStore struct{ fakeStore }

func (unreadableStore) View(context.Context, func(domain.TransactionView) error) error {
	return errReadOnly
}

func TestFetchLogsStoreErrors(t *testing.T) {
	logger := &captureLogger{}
	svc := NewService(unreadableStore{}, WithLogger(logger))
	if _, ok := svc.FetchByUniqueID(context.Background(), alice); ok {
		t.Fatalf("expected lookup to miss when the store fails")
	}
	if _, ok := svc.FetchByName(context.Background(), "Alice"); ok {
		t.Fatalf("expected name lookup to miss when the store fails")
	}
	if len(logger.errs) != 2 {
		t.Fatalf("expected 2 logged errors, got %v", logger.errs)
	}
}

func TestChangePassword(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	if _, _, err := svc.RegisterPerson(ctx, domain.Person{ID: "T3000001F", Name: "Fay", Age: 33, MaritalStatus: domain.MaritalMarried, Role: domain.RoleOfficer}, "first"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.ChangePassword(ctx, "T3000001F", "nope", "second")
	expectErr(t, err, domain.ErrInvalidCredentials)
	if _, err := svc.ChangePassword(ctx, "T3000001F", "first", "second"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "T3000001F", "first"); err == nil {
		t.Fatalf("old password must stop working")
	}
	if _, err := svc.Authenticate(ctx, "T3000001F", "second"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestFetchPersons(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	p, ok := svc.FetchByUniqueID(ctx, mona)
	if !ok || p.Role != domain.RoleManager {
		t.Fatalf("fetch by id: %+v %v", p, ok)
	}
	p, ok = svc.FetchByName(ctx, "  OLIVIA ")
	if !ok || p.ID != olivia {
		t.Fatalf("fetch by name: %+v %v", p, ok)
	}
	if _, ok := svc.FetchByName(ctx, "nobody"); ok {
		t.Fatalf("expected unknown name to miss")
	}
	hash, err := HashPassword(strings.Repeat("x", 10))
	if err != nil || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash: %q %v", hash, err)
	}
}
