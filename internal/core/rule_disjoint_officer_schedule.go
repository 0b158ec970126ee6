package core

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
)

// NewDisjointOfficerWindowsRule blocks an officer from holding accepted
// assignments whose project windows intersect.
func NewDisjointOfficerWindowsRule() domain.Rule {
	return disjointOfficerWindowsRule{}
}

type disjointOfficerWindowsRule struct{}

func (disjointOfficerWindowsRule) Name() string { return "disjoint_officer_windows" }

func (r disjointOfficerWindowsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	// A moved project window can break any officer's schedule.
	officers := touched(changes, EntityAssignmentRequest, assignmentOfficer, EntityProject)
	res := domain.Result{}
	for _, person := range view.ListPersons() {
		if !officers.covers(person.ID) {
			continue
		}
		var accepted []Project
		for _, a := range view.AssignmentsByOfficer(person.ID) {
			if a.Status != domain.AssignmentAccepted {
				continue
			}
			if project, ok := view.FindProject(a.ProjectName); ok {
				accepted = append(accepted, project)
			}
		}
		for i := 0; i < len(accepted); i++ {
			for j := i + 1; j < len(accepted); j++ {
				if !accepted[i].Window().Overlaps(accepted[j].Window()) {
					continue
				}
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message: fmt.Sprintf("officer %s accepted on overlapping projects %s (%s) and %s (%s)",
						person.ID, accepted[i].Name, accepted[i].Window(), accepted[j].Name, accepted[j].Window()),
					Entity:   domain.EntityPerson,
					EntityID: person.ID,
				})
			}
		}
	}
	return res, nil
}
