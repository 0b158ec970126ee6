package core

import (
	"context"
	"errors"
	"go/build"
	"path/filepath"
	"slices"
	"sort"
	"testing"
	"time"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/pkg/domain"
)

// brokenSnapshot is a registry that breaks every invariant once.
func brokenSnapshot() memory.Snapshot {
	at := func(minute int) time.Time { return time.Date(2025, 2, 1, 8, minute, 0, 0, time.UTC) }
	s := memory.Snapshot{
		Persons:     map[string]domain.Person{},
		Projects:    map[string]domain.Project{},
		Requests:    map[string]domain.HousingRequest{},
		Assignments: map[string]domain.AssignmentRequest{},
	}
	for _, p := range seedPersons() {
		s.Persons[p.ID] = p
	}
	for _, p := range seedProjects() {
		switch p.Name {
		case acacia:
			p.OfficerIDs = []string{olivia}
		case elm:
			p.OfficerIDs = []string{olivia, oscar}
		case dawn:
			p.Units[domain.UnitTwoRoom] = domain.UnitInventory{Remaining: -1, Price: 250000}
		}
		s.Projects[p.Name] = p
	}
	requests := []domain.HousingRequest{
		{ID: "r1", ApplicantID: alice, ProjectName: acacia, Category: domain.UnitTwoRoom, Status: domain.RequestPending, CreatedAt: at(1)},
		{ID: "r2", ApplicantID: alice, ProjectName: bukit, Category: domain.UnitTwoRoom, Status: domain.RequestSuccessful, CreatedAt: at(2)},
		{ID: "r3", ApplicantID: chloe, ProjectName: elm, Category: domain.UnitThreeRoom, Status: domain.RequestPending, CreatedAt: at(3)},
		{ID: "r4", ApplicantID: chloe, ProjectName: elm, Category: domain.UnitThreeRoom, Status: domain.RequestPending, CreatedAt: at(4)},
	}
	for _, r := range requests {
		s.Requests[r.ID] = r
	}
	assignments := []domain.AssignmentRequest{
		{ID: "a1", OfficerID: olivia, ProjectName: acacia, Status: domain.AssignmentAccepted, CreatedAt: at(5)},
		{ID: "a2", OfficerID: olivia, ProjectName: elm, Status: domain.AssignmentAccepted, CreatedAt: at(6)},
		{ID: "a3", OfficerID: oscar, ProjectName: elm, Status: domain.AssignmentAccepted, CreatedAt: at(7)},
	}
	for _, a := range assignments {
		s.Assignments[a.ID] = a
	}
	return s
}

func violatedIDs(res domain.Result) []string {
	var ids []string
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			continue
		}
		ids = append(ids, v.EntityID)
	}
	sort.Strings(ids)
	return ids
}

func TestRulesOverWholeRegistry(t *testing.T) {
	store := memory.NewStore(nil)
	store.ImportState(brokenSnapshot())

	cases := []struct {
		rule domain.Rule
		want []string
	}{
		{NewSingleActiveRequestRule(), []string{alice, chloe}},
		{NewUniqueActivePairRule(), []string{chloe}},
		{NewDisjointOfficerWindowsRule(), []string{olivia}},
		{NewUnitInventoryRule(), []string{dawn}},
		{NewOfficerSlotCapacityRule(), []string{elm}},
	}
	for _, tc := range cases {
		t.Run(tc.rule.Name(), func(t *testing.T) {
			var res domain.Result
			err := store.View(context.Background(), func(view domain.TransactionView) error {
				var err error
				res, err = tc.rule.Evaluate(context.Background(), view, nil)
				return err
			})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			got := violatedIDs(res)
			if len(got) != len(tc.want) {
				t.Fatalf("expected violations for %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected violations for %v, got %v", tc.want, got)
				}
			}
			for _, v := range res.Violations {
				if v.Rule != tc.rule.Name() || v.Message == "" {
					t.Fatalf("unexpected violation shape: %+v", v)
				}
			}
		})
	}
}

func TestRulesAreScopedToTouchedRecords(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	store.ImportState(brokenSnapshot())
	svc := NewService(store, WithClock(newSteppingClock()))
	ctx := context.Background()

	// Ben's request only touches Ben, so the standing violations elsewhere
	// do not block it.
	if _, _, err := svc.Submit(ctx, ben, acacia, domain.UnitTwoRoom); err != nil {
		t.Fatalf("submit for untouched applicant: %v", err)
	}

	// Any project change re-checks every officer's schedule.
	_, _, err := svc.ToggleVisibility(ctx, mona, acacia, false)
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if got := violatedIDs(violation.Result); len(got) != 1 || got[0] != olivia {
		t.Fatalf("expected only the officer schedule to block, got %v", got)
	}
	if !mustProject(t, svc, acacia).Visible {
		t.Fatalf("blocked toggle must not commit")
	}

	res, err := svc.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violations from check")
	}
	rules := map[string]bool{}
	for _, v := range res.Violations {
		rules[v.Rule] = true
	}
	for _, rule := range NewDefaultRulesEngine().Rules() {
		if !rules[rule.Name()] {
			t.Fatalf("check did not report %s: %+v", rule.Name(), res.Violations)
		}
	}
}

func TestRulesRollBackRawInserts(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	if _, _, err := svc.Submit(ctx, alice, acacia, domain.UnitThreeRoom); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.InsertHousingRequest(domain.HousingRequest{ApplicantID: alice, ProjectName: elm, Category: domain.UnitThreeRoom})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected single active request rule to block, got %v", err)
	}
	history, err := svc.RequestHistory(ctx, alice)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected rollback to leave one request, got %d", len(history))
	}

	_, err = svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateProject(bukit, func(p *domain.Project) error {
			p.OfficerIDs = []string{olivia, oscar}
			return nil
		})
		return err
	})
	if !errors.As(err, &violation) || violation.Result.Violations[0].Rule != "officer_slot_capacity" {
		t.Fatalf("expected slot capacity violation, got %v", err)
	}
}

func TestCheckWithoutEngine(t *testing.T) {
	svc := NewService(fakeStore{})
	res, err := svc.Check(context.Background())
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected empty check without an engine, got %+v, %v", res, err)
	}
}

func TestDefaultEngineRegistersEveryRule(t *testing.T) {
	var names []string
	for _, rule := range NewDefaultRulesEngine().Rules() {
		names = append(names, rule.Name())
	}
	want := []string{"single_active_request", "unique_active_pair", "disjoint_officer_windows", "unit_inventory", "officer_slot_capacity"}
	if !slices.Equal(names, want) {
		t.Fatalf("expected rules %v, got %v", want, names)
	}
}

// Every source file in the package must build on every platform; a name
// ending in _windows.go or _linux.go would silently drop it elsewhere.
func TestSourceFilesCarryNoPlatformSuffix(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	for _, goos := range []string{"linux", "darwin", "windows"} {
		ctx := build.Default
		ctx.GOOS = goos
		for _, name := range files {
			ok, err := ctx.MatchFile(".", name)
			if err != nil {
				t.Fatalf("match %s: %v", name, err)
			}
			if !ok {
				t.Fatalf("%s is excluded when GOOS=%s", name, goos)
			}
		}
	}
}
