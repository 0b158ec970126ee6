package core

import (
	"context"
	"testing"
	"time"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/pkg/domain"
)

func TestIsVisible(t *testing.T) {
	today := domain.MustDate("10/2/2025")
	married := domain.Person{ID: "A", Age: 30, MaritalStatus: domain.MaritalMarried}
	youngSingle := domain.Person{ID: "B", Age: 25, MaritalStatus: domain.MaritalSingle}
	officer := domain.Person{ID: "O", Role: domain.RoleOfficer, Age: 25, MaritalStatus: domain.MaritalSingle}
	manager := domain.Person{ID: "M", Role: domain.RoleManager}

	open := domain.Project{
		Name: "Open", Visible: true, ManagerID: "M", OfficerIDs: []string{"O"},
		OpenDate: domain.MustDate("1/2/2025"), CloseDate: domain.MustDate("10/2/2025"),
		Units: units(1, 1, 0, 1),
	}
	hidden := open
	hidden.Visible = false
	closed := open
	closed.CloseDate = domain.MustDate("9/2/2025")
	soldOut := open
	soldOut.Units = units(0, 1, 0, 1)

	cases := []struct {
		name    string
		viewer  domain.Person
		project domain.Project
		want    bool
	}{
		{"eligible on closing day", married, open, true},
		{"ineligible single under 35", youngSingle, open, false},
		{"hidden", married, hidden, false},
		{"closed yesterday", married, closed, false},
		{"sold out", married, soldOut, false},
		{"manager sees hidden", manager, hidden, true},
		{"rostered officer sees closed", officer, closed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsVisible(tc.viewer, tc.project, today.Add(23*time.Hour)); got != tc.want {
				t.Fatalf("IsVisible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConflictOfInterest(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	acceptOfficer(t, svc, mona, olivia, acacia)
	if _, _, err := svc.Register(ctx, oscar, bukit); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name    string
		person  string
		project string
		want    bool
	}{
		{"manager anywhere", marcus, acacia, true},
		{"rostered officer", olivia, acacia, true},
		{"officer with overlapping accepted window", olivia, elm, true},
		{"officer with disjoint accepted window", olivia, dawn, false},
		{"officer with pending assignment", oscar, bukit, true},
		{"officer elsewhere", oscar, elm, false},
		{"applicant", alice, acacia, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got bool
			err := svc.Store().View(ctx, func(view domain.TransactionView) error {
				person, _ := view.FindPerson(tc.person)
				project, _ := view.FindProject(tc.project)
				got = ConflictOfInterest(view, person, project)
				return nil
			})
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ConflictOfInterest = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConflictOfInterestStaffWhoApplied(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
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
		_, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: oscar, ProjectName: dawn, Category: domain.UnitTwoRoom, Status: domain.RequestUnsuccessful})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.View(context.Background(), func(view domain.TransactionView) error {
		person, _ := view.FindPerson(oscar)
		project, _ := view.FindProject(acacia)
		if !ConflictOfInterest(view, person, project) {
			t.Fatalf("expected staff with a housing request history to be conflicted")
		}
		return nil
	})
}

func TestVisibleAndApplicableProjects(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	visible, err := svc.VisibleProjects(ctx, alice)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if names := projectNames(visible); len(names) != 2 || names[0] != acacia || names[1] != elm {
		t.Fatalf("unexpected visible projects for alice: %v", names)
	}

	managerView, err := svc.VisibleProjects(ctx, mona)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if names := projectNames(managerView); len(names) != 3 || names[0] != acacia || names[1] != dawn || names[2] != elm {
		t.Fatalf("expected in-charge override for mona, got %v", names)
	}
	applicable, err := svc.ApplicableProjects(ctx, mona)
	if err != nil {
		t.Fatalf("applicable: %v", err)
	}
	if len(applicable) != 0 {
		t.Fatalf("expected managers to have no applicable projects, got %v", projectNames(applicable))
	}

	acceptOfficer(t, svc, mona, olivia, dawn)
	officerApplicable, err := svc.ApplicableProjects(ctx, olivia)
	if err != nil {
		t.Fatalf("applicable: %v", err)
	}
	if names := projectNames(officerApplicable); len(names) != 2 || names[0] != acacia || names[1] != elm {
		t.Fatalf("unexpected applicable projects for olivia: %v", names)
	}
	if _, err := svc.VisibleProjects(ctx, "nobody"); err == nil {
		t.Fatalf("expected unknown viewer error")
	}
}

func projectNames(projects []domain.Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}
