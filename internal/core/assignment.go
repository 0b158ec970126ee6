package core

import (
	"context"
	"fmt"
	"slices"

	"housingcore/pkg/domain"
)

// acceptedOverlap returns the project of an accepted assignment held by
// officerID whose window intersects project's, skipping the assignment skipID.
func acceptedOverlap(view domain.RuleView, officerID string, project Project, skipID string) (Project, bool) {
	for _, a := range view.AssignmentsByOfficer(officerID) {
		if a.ID == skipID || a.Status != domain.AssignmentAccepted {
			continue
		}
		other, ok := view.FindProject(a.ProjectName)
		if ok && other.Window().Overlaps(project.Window()) {
			return other, true
		}
	}
	return Project{}, false
}

// Register records an officer's request to administer project. The checks
// run in order: window conflict with an accepted assignment, a live request
// for the same pair, then a housing request of the officer's own for the
// project.
func (s *Service) Register(ctx context.Context, officerID, projectName string) (AssignmentRequest, Result, error) {
	var created AssignmentRequest
	res, err := s.mutate(ctx, "register_assignment", officerID, func(tx domain.Transaction) (string, error) {
		officer, err := findPerson(tx, officerID)
		if err != nil {
			return "", err
		}
		if officer.Role != domain.RoleOfficer {
			return "", fmt.Errorf("%s is a %s: %w", officer.ID, officer.Role, domain.ErrPermissionDenied)
		}
		project, err := findProject(tx, projectName)
		if err != nil {
			return "", err
		}
		if other, ok := acceptedOverlap(tx, officer.ID, project, ""); ok {
			return "", fmt.Errorf("%s %s overlaps %s %s: %w", project.Name, project.Window(), other.Name, other.Window(), domain.ErrTimeConflict)
		}
		for _, a := range tx.AssignmentsByOfficer(officer.ID) {
			if a.Status != domain.AssignmentRejected && domain.ProjectKey(a.ProjectName) == project.Key() {
				return "", fmt.Errorf("%s -> %s: %w", officer.ID, project.Name, domain.ErrDuplicateRequest)
			}
		}
		for _, req := range tx.RequestsByProject(project.Name) {
			if req.ApplicantID == officer.ID && req.IsActive() {
				return "", fmt.Errorf("%s applied for a unit in %s: %w", officer.ID, project.Name, domain.ErrConflictOfInterest)
			}
		}
		created, err = tx.InsertAssignmentRequest(AssignmentRequest{
			OfficerID:   officer.ID,
			ProjectName: project.Name,
			ManagerID:   project.ManagerID,
			Status:      domain.AssignmentApplied,
		})
		return created.ID, err
	})
	return created, res, err
}

// setAssignmentStatus moves an applied assignment to accepted or rejected.
// Acceptance re-checks the officer's schedule and the project's free slots
// and adds the officer to the roster.
func setAssignmentStatus(tx domain.Transaction, assignment AssignmentRequest, status domain.AssignmentStatus) (AssignmentRequest, error) {
	if !assignment.Status.CanTransitionTo(status) {
		return AssignmentRequest{}, fmt.Errorf("assignment %s %s -> %s: %w", assignment.ID, assignment.Status, status, domain.ErrInvalidTransition)
	}
	if status == domain.AssignmentAccepted {
		project, err := findProject(tx, assignment.ProjectName)
		if err != nil {
			return AssignmentRequest{}, err
		}
		if other, ok := acceptedOverlap(tx, assignment.OfficerID, project, assignment.ID); ok {
			return AssignmentRequest{}, fmt.Errorf("%s overlaps %s: %w", project.Name, other.Name, domain.ErrTimeConflict)
		}
		if project.SlotsLeft() <= 0 {
			return AssignmentRequest{}, fmt.Errorf("%s: %w", project.Name, domain.ErrOfficerSlotsFull)
		}
		if _, err := tx.UpdateProject(project.Name, func(p *Project) error {
			if !slices.Contains(p.OfficerIDs, assignment.OfficerID) {
				p.OfficerIDs = append(p.OfficerIDs, assignment.OfficerID)
			}
			return nil
		}); err != nil {
			return AssignmentRequest{}, err
		}
	}
	return tx.UpdateAssignmentRequest(assignment.ID, func(a *AssignmentRequest) error {
		a.Status = status
		return nil
	})
}

// SetAssignmentStatus is the raw status setter. It does not check who asks;
// DecideAssignment does.
func (s *Service) SetAssignmentStatus(ctx context.Context, assignmentID string, status domain.AssignmentStatus) (AssignmentRequest, Result, error) {
	var updated AssignmentRequest
	res, err := s.mutate(ctx, "set_assignment_status", "", func(tx domain.Transaction) (string, error) {
		assignment, ok := tx.FindAssignmentRequest(assignmentID)
		if !ok {
			return assignmentID, domain.ErrNotFound{Entity: EntityAssignmentRequest, ID: assignmentID}
		}
		var err error
		updated, err = setAssignmentStatus(tx, assignment, status)
		return assignmentID, err
	})
	return updated, res, err
}

// DecideAssignment lets the project's manager accept or reject an
// officer's request.
func (s *Service) DecideAssignment(ctx context.Context, managerID, assignmentID string, accept bool) (AssignmentRequest, Result, error) {
	var updated AssignmentRequest
	res, err := s.mutate(ctx, "decide_assignment", managerID, func(tx domain.Transaction) (string, error) {
		manager, err := findPerson(tx, managerID)
		if err != nil {
			return assignmentID, err
		}
		assignment, ok := tx.FindAssignmentRequest(assignmentID)
		if !ok {
			return assignmentID, domain.ErrNotFound{Entity: EntityAssignmentRequest, ID: assignmentID}
		}
		project, err := findProject(tx, assignment.ProjectName)
		if err != nil {
			return assignmentID, err
		}
		if !manager.IsManagerOf(project) {
			return assignmentID, fmt.Errorf("%s on %s: %w", manager.ID, project.Name, domain.ErrPermissionDenied)
		}
		status := domain.AssignmentRejected
		if accept {
			status = domain.AssignmentAccepted
		}
		updated, err = setAssignmentStatus(tx, assignment, status)
		return assignmentID, err
	})
	return updated, res, err
}

// OfficerAssignments lists an officer's assignment requests, newest first.
func (s *Service) OfficerAssignments(ctx context.Context, officerID string) ([]AssignmentRequest, error) {
	var out []AssignmentRequest
	err := s.read(ctx, "officer_assignments", func(view domain.TransactionView) error {
		out = view.AssignmentsByOfficer(officerID)
		return nil
	})
	return out, err
}

// ProjectAssignments lists the assignment requests for a project, newest first.
func (s *Service) ProjectAssignments(ctx context.Context, projectName string) ([]AssignmentRequest, error) {
	var out []AssignmentRequest
	err := s.read(ctx, "project_assignments", func(view domain.TransactionView) error {
		if _, err := findProject(view, projectName); err != nil {
			return err
		}
		out = view.AssignmentsByProject(projectName)
		return nil
	})
	return out, err
}
