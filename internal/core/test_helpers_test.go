package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"housingcore/pkg/domain"
)

const (
	alice  = "S1234567A" // married, 30
	ben    = "S7654321B" // single, 40
	chloe  = "S2222222C" // single, 25
	mona   = "T1000001M" // manager of Acacia Breeze and Dawn Court
	marcus = "T1000002M" // manager of Bukit Vista and Elm Terrace
	olivia = "T2000001F" // officer, married, 29
	oscar  = "T2000002F" // officer, single, 38

	acacia = "Acacia Breeze" // 1/2/2025-28/2/2025, published
	bukit  = "Bukit Vista"   // 15/2/2025-15/3/2025, published
	dawn   = "Dawn Court"    // 1/1/2025-31/1/2025, hidden
	elm    = "Elm Terrace"   // 1/2/2025-14/2/2025, published, 3-room stock only
)

// steppingClock starts on 10/2/2025 and advances one second per reading.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func units(two, twoPrice, three, threePrice int) map[domain.UnitCategory]domain.UnitInventory {
	return map[domain.UnitCategory]domain.UnitInventory{
		domain.UnitTwoRoom:   {Remaining: two, Price: twoPrice},
		domain.UnitThreeRoom: {Remaining: three, Price: threePrice},
	}
}

func seedPersons() []domain.Person {
	return []domain.Person{
		{ID: alice, Name: "Alice", Age: 30, MaritalStatus: domain.MaritalMarried},
		{ID: ben, Name: "Ben", Age: 40, MaritalStatus: domain.MaritalSingle},
		{ID: chloe, Name: "Chloe", Age: 25, MaritalStatus: domain.MaritalSingle},
		{ID: mona, Name: "Mona", Age: 45, MaritalStatus: domain.MaritalMarried, Role: domain.RoleManager},
		{ID: marcus, Name: "Marcus", Age: 50, MaritalStatus: domain.MaritalMarried, Role: domain.RoleManager},
		{ID: olivia, Name: "Olivia", Age: 29, MaritalStatus: domain.MaritalMarried, Role: domain.RoleOfficer},
		{ID: oscar, Name: "Oscar", Age: 38, MaritalStatus: domain.MaritalSingle, Role: domain.RoleOfficer},
	}
}

func seedProjects() []domain.Project {
	return []domain.Project{
		{Name: acacia, Neighbourhood: "Yishun", ManagerID: mona, Visible: true, OfficerSlots: 2,
			OpenDate: domain.MustDate("1/2/2025"), CloseDate: domain.MustDate("28/2/2025"),
			Units: units(2, 350000, 1, 450000)},
		{Name: bukit, Neighbourhood: "Boon Lay", ManagerID: marcus, Visible: true, OfficerSlots: 1,
			OpenDate: domain.MustDate("15/2/2025"), CloseDate: domain.MustDate("15/3/2025"),
			Units: units(1, 300000, 0, 400000)},
		{Name: dawn, Neighbourhood: "Tampines", ManagerID: mona, Visible: false, OfficerSlots: 2,
			OpenDate: domain.MustDate("1/1/2025"), CloseDate: domain.MustDate("31/1/2025"),
			Units: units(1, 250000, 1, 380000)},
		{Name: elm, Neighbourhood: "Bedok", ManagerID: marcus, Visible: true, OfficerSlots: 1,
			OpenDate: domain.MustDate("1/2/2025"), CloseDate: domain.MustDate("14/2/2025"),
			Units: units(0, 280000, 5, 480000)},
	}
}

// newFixture returns a service over a seeded in-memory store with the
// default rules and a stepping clock.
func newFixture(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(newSteppingClock())}, opts...)
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	_, err := svc.Store().RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, p := range seedPersons() {
			if _, err := tx.CreatePerson(p); err != nil {
				return err
			}
		}
		for _, p := range seedProjects() {
			if _, err := tx.CreateProject(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc
}

// acceptOfficer registers officerID for project and has the manager accept.
func acceptOfficer(t *testing.T, svc *Service, managerID, officerID, project string) domain.AssignmentRequest {
	t.Helper()
	ctx := context.Background()
	a, _, err := svc.Register(ctx, officerID, project)
	if err != nil {
		t.Fatalf("register %s for %s: %v", officerID, project, err)
	}
	accepted, _, err := svc.DecideAssignment(ctx, managerID, a.ID, true)
	if err != nil {
		t.Fatalf("accept %s for %s: %v", officerID, project, err)
	}
	return accepted
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func mustProject(t *testing.T, svc *Service, name string) domain.Project {
	t.Helper()
	var out domain.Project
	err := svc.Store().View(context.Background(), func(view domain.TransactionView) error {
		p, ok := view.FindProject(name)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityProject, ID: name}
		}
		out = p
		return nil
	})
	if err != nil {
		t.Fatalf("project %s: %v", name, err)
	}
	return out
}

func categoryPtr(c domain.UnitCategory) *domain.UnitCategory { return &c }
