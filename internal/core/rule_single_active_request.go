package core

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
)

// NewSingleActiveRequestRule blocks commits that leave an applicant with more
// than one request that is not unsuccessful.
func NewSingleActiveRequestRule() domain.Rule {
	return singleActiveRequestRule{}
}

type singleActiveRequestRule struct{}

func (singleActiveRequestRule) Name() string { return "single_active_request" }

func (r singleActiveRequestRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	applicants := touched(changes, EntityHousingRequest, requestApplicant)
	res := domain.Result{}
	for _, person := range view.ListPersons() {
		if !applicants.covers(person.ID) {
			continue
		}
		active := 0
		for _, req := range view.RequestsByApplicant(person.ID) {
			if req.IsActive() {
				active++
			}
		}
		if active > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("applicant %s has %d active housing requests", person.ID, active),
				Entity:   domain.EntityPerson,
				EntityID: person.ID,
			})
		}
	}
	return res, nil
}
