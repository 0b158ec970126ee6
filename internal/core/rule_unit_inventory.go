package core

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
)

// NewUnitInventoryRule keeps every remaining count non-negative.
func NewUnitInventoryRule() domain.Rule {
	return unitInventoryRule{}
}

type unitInventoryRule struct{}

func (unitInventoryRule) Name() string { return "unit_inventory" }

func (r unitInventoryRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	projects := touched(changes, EntityProject, projectKey)
	res := domain.Result{}
	for _, project := range view.ListProjects() {
		if !projects.covers(project.Key()) {
			continue
		}
		for _, category := range domain.UnitCategories {
			inv, ok := project.Units[category]
			if !ok || (inv.Remaining >= 0 && inv.Price >= 0) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s has invalid %s inventory: %d remaining at price %d", project.Name, category, inv.Remaining, inv.Price),
				Entity:   domain.EntityProject,
				EntityID: project.Name,
			})
		}
	}
	return res, nil
}
