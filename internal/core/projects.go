package core

import (
	"context"
	"fmt"

	"housingcore/pkg/domain"
)

// checkManagerSchedule enforces one managed project per period: no other
// project of the same manager may overlap p's window.
func checkManagerSchedule(view domain.RuleView, p Project) error {
	if !p.Window().Valid() {
		return fmt.Errorf("%s %s: %w", p.Name, p.Window(), domain.ErrInvalidWindow)
	}
	for _, other := range view.ListProjects() {
		if other.Key() == p.Key() || other.ManagerID != p.ManagerID {
			continue
		}
		if other.Window().Overlaps(p.Window()) {
			return fmt.Errorf("manager %s already runs %s %s: %w", p.ManagerID, other.Name, other.Window(), domain.ErrTimeConflict)
		}
	}
	return nil
}

func managerOf(view domain.RuleView, managerID, projectName string) (Project, error) {
	manager, err := findPerson(view, managerID)
	if err != nil {
		return Project{}, err
	}
	project, err := findProject(view, projectName)
	if err != nil {
		return Project{}, err
	}
	if !manager.IsManagerOf(project) {
		return Project{}, fmt.Errorf("%s on %s: %w", manager.ID, project.Name, domain.ErrPermissionDenied)
	}
	return project, nil
}

// CreateProject stores a project managed by managerID.
func (s *Service) CreateProject(ctx context.Context, managerID string, project Project) (Project, Result, error) {
	var created Project
	res, err := s.mutate(ctx, "create_project", managerID, func(tx domain.Transaction) (string, error) {
		manager, err := findPerson(tx, managerID)
		if err != nil {
			return project.Name, err
		}
		if manager.Role != domain.RoleManager {
			return project.Name, fmt.Errorf("%s is a %s: %w", manager.ID, manager.Role, domain.ErrPermissionDenied)
		}
		project.ManagerID = manager.ID
		if err := checkManagerSchedule(tx, project); err != nil {
			return project.Name, err
		}
		created, err = tx.CreateProject(project)
		return created.Name, err
	})
	return created, res, err
}

// UpdateProject applies mutator to a project the manager runs. The window
// and schedule checks are repeated on the result.
func (s *Service) UpdateProject(ctx context.Context, managerID, projectName string, mutator func(*Project) error) (Project, Result, error) {
	var updated Project
	res, err := s.mutate(ctx, "update_project", managerID, func(tx domain.Transaction) (string, error) {
		if _, err := managerOf(tx, managerID, projectName); err != nil {
			return projectName, err
		}
		var err error
		updated, err = tx.UpdateProject(projectName, func(p *Project) error {
			if err := mutator(p); err != nil {
				return err
			}
			p.ManagerID = managerID
			return checkManagerSchedule(tx, *p)
		})
		return updated.Name, err
	})
	return updated, res, err
}

// ToggleVisibility publishes or hides a project.
func (s *Service) ToggleVisibility(ctx context.Context, managerID, projectName string, visible bool) (Project, Result, error) {
	var updated Project
	res, err := s.mutate(ctx, "toggle_visibility", managerID, func(tx domain.Transaction) (string, error) {
		if _, err := managerOf(tx, managerID, projectName); err != nil {
			return projectName, err
		}
		var err error
		updated, err = tx.UpdateProject(projectName, func(p *Project) error {
			p.Visible = visible
			return nil
		})
		return updated.Name, err
	})
	return updated, res, err
}

// DeleteProject removes a project nothing references.
func (s *Service) DeleteProject(ctx context.Context, managerID, projectName string) (Result, error) {
	return s.mutate(ctx, "delete_project", managerID, func(tx domain.Transaction) (string, error) {
		project, err := managerOf(tx, managerID, projectName)
		if err != nil {
			return projectName, err
		}
		return project.Name, tx.DeleteProject(project.Name)
	})
}

// Projects lists every project by name.
func (s *Service) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := s.read(ctx, "list_projects", func(view domain.TransactionView) error {
		out = view.ListProjects()
		return nil
	})
	return out, err
}
