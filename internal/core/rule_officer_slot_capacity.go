package core

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
)

// NewOfficerSlotCapacityRule keeps a project's roster within its officer slots.
func NewOfficerSlotCapacityRule() domain.Rule {
	return officerSlotCapacityRule{}
}

type officerSlotCapacityRule struct{}

func (officerSlotCapacityRule) Name() string { return "officer_slot_capacity" }

func (r officerSlotCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	projects := touched(changes, EntityProject, projectKey)
	res := domain.Result{}
	for _, project := range view.ListProjects() {
		if !projects.covers(project.Key()) {
			continue
		}
		if len(project.OfficerIDs) > project.OfficerSlots {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s has %d officers for %d slots", project.Name, len(project.OfficerIDs), project.OfficerSlots),
				Entity:   domain.EntityProject,
				EntityID: project.Name,
			})
		}
	}
	return res, nil
}
