package core

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
)

// NewUniqueActivePairRule blocks a second live request for the same
// applicant and project.
func NewUniqueActivePairRule() domain.Rule {
	return uniqueActivePairRule{}
}

type uniqueActivePairRule struct{}

func (uniqueActivePairRule) Name() string { return "unique_active_pair" }

func (r uniqueActivePairRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	applicants := touched(changes, EntityHousingRequest, requestApplicant)
	res := domain.Result{}
	for _, person := range view.ListPersons() {
		if !applicants.covers(person.ID) {
			continue
		}
		seen := make(map[string]int)
		for _, req := range view.RequestsByApplicant(person.ID) {
			if req.IsActive() {
				seen[domain.ProjectKey(req.ProjectName)]++
			}
		}
		for project, n := range seen {
			if n < 2 {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("applicant %s holds %d live requests for project %s", person.ID, n, project),
				Entity:   domain.EntityPerson,
				EntityID: person.ID,
			})
		}
	}
	return res, nil
}
