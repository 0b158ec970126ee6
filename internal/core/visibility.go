package core

import (
	"context"
	"sort"
	"time"

	"housingcore/pkg/domain"
)

// IsVisible reports whether viewer may see project on the calendar day of
// today. The project's manager and rostered officers always see it; anyone
// else needs it published, open today, and offering a category they are
// eligible for with units left.
func IsVisible(viewer Person, project Project, today time.Time) bool {
	if viewer.InCharge(project) {
		return true
	}
	return project.Visible &&
		project.Window().Contains(today) &&
		len(domain.AvailableCategories(viewer, project)) > 0
}

// ConflictOfInterest reports whether viewer is barred from applying to
// project through self-service.
func ConflictOfInterest(view domain.RuleView, viewer Person, project Project) bool {
	if viewer.Role == domain.RoleManager || viewer.InCharge(project) {
		return true
	}
	key := project.Key()
	for _, a := range view.AssignmentsByOfficer(viewer.ID) {
		if domain.ProjectKey(a.ProjectName) == key && a.Status != domain.AssignmentRejected {
			return true
		}
		if viewer.Role != domain.RoleOfficer || a.Status != domain.AssignmentAccepted {
			continue
		}
		if other, ok := view.FindProject(a.ProjectName); ok && other.Window().Overlaps(project.Window()) {
			return true
		}
	}
	// Staff who have applied for a unit once stay out of self-service.
	return viewer.IsStaff() && len(view.RequestsByApplicant(viewer.ID)) > 0
}

// VisibleProjects lists the projects viewer may see today, by name.
func (s *Service) VisibleProjects(ctx context.Context, viewerID string) ([]Project, error) {
	return s.listProjects(ctx, "visible_projects", viewerID, false)
}

// ApplicableProjects lists the projects viewer may see today and apply to
// without a conflict of interest, by name.
func (s *Service) ApplicableProjects(ctx context.Context, viewerID string) ([]Project, error) {
	return s.listProjects(ctx, "applicable_projects", viewerID, true)
}

func (s *Service) listProjects(ctx context.Context, op, viewerID string, excludeConflicts bool) ([]Project, error) {
	today := domain.Day(s.now())
	var out []Project
	err := s.read(ctx, op, func(view domain.TransactionView) error {
		viewer, err := findPerson(view, viewerID)
		if err != nil {
			return err
		}
		for _, project := range view.ListProjects() {
			if !IsVisible(viewer, project, today) {
				continue
			}
			if excludeConflicts && ConflictOfInterest(view, viewer, project) {
				continue
			}
			out = append(out, project)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}
