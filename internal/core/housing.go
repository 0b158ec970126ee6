package core

import (
	"context"
	"fmt"
	"slices"

	"housingcore/pkg/domain"
)

// activeRequest returns the head of the applicant's newest-first history when
// it is still active.
func activeRequest(view domain.RuleView, applicantID string) (HousingRequest, bool) {
	history := view.RequestsByApplicant(applicantID)
	if len(history) == 0 || !history[0].IsActive() {
		return HousingRequest{}, false
	}
	return history[0], true
}

// submit is the validating insert shared by Submit and Apply. The live pair
// check runs before the active application check so that a repeat request for
// the same project reports ErrDuplicateRequest.
func submit(tx domain.Transaction, applicantID, projectName string, category UnitCategory) (HousingRequest, error) {
	if !slices.Contains(domain.UnitCategories, category) {
		return HousingRequest{}, domain.InvalidEnumError{Kind: "unit category", Value: string(category)}
	}
	applicant, err := findPerson(tx, applicantID)
	if err != nil {
		return HousingRequest{}, err
	}
	project, err := findProject(tx, projectName)
	if err != nil {
		return HousingRequest{}, err
	}
	for _, req := range tx.RequestsByApplicant(applicant.ID) {
		if req.IsActive() && domain.ProjectKey(req.ProjectName) == project.Key() {
			return HousingRequest{}, fmt.Errorf("%s -> %s: %w", applicant.ID, project.Name, domain.ErrDuplicateRequest)
		}
	}
	if active, ok := activeRequest(tx, applicant.ID); ok {
		return HousingRequest{}, fmt.Errorf("%s holds %s for %s: %w", applicant.ID, active.ID, active.ProjectName, domain.ErrActiveApplicationExists)
	}
	return tx.InsertHousingRequest(HousingRequest{
		ApplicantID: applicant.ID,
		ProjectName: project.Name,
		Category:    category,
		Status:      domain.RequestPending,
		Withdrawal:  domain.WithdrawalNotRequested,
	})
}

// Submit records a pending request for category in project. It does not
// check eligibility or visibility; Apply does.
func (s *Service) Submit(ctx context.Context, applicantID, projectName string, category UnitCategory) (HousingRequest, Result, error) {
	var created HousingRequest
	res, err := s.mutate(ctx, "submit_request", applicantID, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = submit(tx, applicantID, projectName, category)
		return created.ID, err
	})
	return created, res, err
}

// Apply is the self-service application path. The project must be open to
// the applicant without a conflict of interest, and a category the applicant
// is eligible for must have units left. A nil preference takes the
// largest eligible category with units left; an explicit preference is never
// swapped for another category.
func (s *Service) Apply(ctx context.Context, applicantID, projectName string, preferred *UnitCategory) (HousingRequest, Result, error) {
	var created HousingRequest
	res, err := s.mutate(ctx, "apply", applicantID, func(tx domain.Transaction) (string, error) {
		applicant, err := findPerson(tx, applicantID)
		if err != nil {
			return "", err
		}
		project, err := findProject(tx, projectName)
		if err != nil {
			return "", err
		}
		published := project.Visible && project.Window().Contains(tx.Now())
		if !published || ConflictOfInterest(tx, applicant, project) {
			return "", fmt.Errorf("%s: %w", project.Name, domain.ErrProjectUnavailable)
		}
		category, err := domain.ChooseCategory(applicant, project, preferred)
		if err != nil {
			return "", fmt.Errorf("%s: %w", project.Name, err)
		}
		created, err = submit(tx, applicant.ID, project.Name, category)
		return created.ID, err
	})
	return created, res, err
}

// RequestWithdrawal marks the applicant's active request as awaiting a
// withdrawal decision.
func (s *Service) RequestWithdrawal(ctx context.Context, applicantID string) (HousingRequest, Result, error) {
	var updated HousingRequest
	res, err := s.mutate(ctx, "request_withdrawal", applicantID, func(tx domain.Transaction) (string, error) {
		active, ok := activeRequest(tx, applicantID)
		if !ok {
			return "", fmt.Errorf("%s: %w", applicantID, domain.ErrNoActiveApplication)
		}
		if !active.Withdrawal.CanRequest() {
			return active.ID, fmt.Errorf("%s: %w", active.ID, domain.ErrWithdrawalAlreadyPending)
		}
		var err error
		updated, err = tx.UpdateHousingRequest(active.ID, func(r *HousingRequest) error {
			r.Withdrawal = domain.WithdrawalRequested
			return nil
		})
		return active.ID, err
	})
	return updated, res, err
}

// ActiveRequest returns the applicant's active request, if any.
func (s *Service) ActiveRequest(ctx context.Context, applicantID string) (HousingRequest, bool, error) {
	var (
		active HousingRequest
		ok     bool
	)
	err := s.read(ctx, "active_request", func(view domain.TransactionView) error {
		active, ok = activeRequest(view, applicantID)
		return nil
	})
	return active, ok, err
}

// RequestHistory lists every request the applicant made, newest first.
func (s *Service) RequestHistory(ctx context.Context, applicantID string) ([]HousingRequest, error) {
	var out []HousingRequest
	err := s.read(ctx, "request_history", func(view domain.TransactionView) error {
		out = view.RequestsByApplicant(applicantID)
		return nil
	})
	return out, err
}

// ProjectRequests lists the requests made for a project, newest first.
func (s *Service) ProjectRequests(ctx context.Context, projectName string) ([]HousingRequest, error) {
	var out []HousingRequest
	err := s.read(ctx, "project_requests", func(view domain.TransactionView) error {
		if _, err := findProject(view, projectName); err != nil {
			return err
		}
		out = view.RequestsByProject(projectName)
		return nil
	})
	return out, err
}

// requestForStaff loads a request and its project, requiring staff to pass allowed.
func requestForStaff(tx domain.Transaction, staffID, requestID string, allowed func(Person, Project) bool) (HousingRequest, Project, error) {
	staff, err := findPerson(tx, staffID)
	if err != nil {
		return HousingRequest{}, Project{}, err
	}
	req, ok := tx.FindHousingRequest(requestID)
	if !ok {
		return HousingRequest{}, Project{}, domain.ErrNotFound{Entity: EntityHousingRequest, ID: requestID}
	}
	project, err := findProject(tx, req.ProjectName)
	if err != nil {
		return HousingRequest{}, Project{}, err
	}
	if !allowed(staff, project) {
		return HousingRequest{}, Project{}, fmt.Errorf("%s on %s: %w", staff.ID, project.Name, domain.ErrPermissionDenied)
	}
	return req, project, nil
}

func transition(req *HousingRequest, next domain.RequestStatus) error {
	if !req.Status.CanTransitionTo(next) {
		return fmt.Errorf("request %s %s -> %s: %w", req.ID, req.Status, next, domain.ErrInvalidTransition)
	}
	req.Status = next
	return nil
}

// DecideRequest lets the project's manager approve or reject a pending
// request. Approval needs a unit left in the requested category.
func (s *Service) DecideRequest(ctx context.Context, managerID, requestID string, approve bool) (HousingRequest, Result, error) {
	var updated HousingRequest
	res, err := s.mutate(ctx, "decide_request", managerID, func(tx domain.Transaction) (string, error) {
		req, project, err := requestForStaff(tx, managerID, requestID, Person.IsManagerOf)
		if err != nil {
			return requestID, err
		}
		if req.Status != domain.RequestPending {
			return req.ID, fmt.Errorf("request %s is %s: %w", req.ID, req.Status, domain.ErrInvalidTransition)
		}
		next := domain.RequestUnsuccessful
		if approve {
			next = domain.RequestSuccessful
			if project.Remaining(req.Category) <= 0 {
				return req.ID, fmt.Errorf("%s %s: %w", project.Name, req.Category, domain.ErrNoUnitsRemaining)
			}
		}
		updated, err = tx.UpdateHousingRequest(req.ID, func(r *HousingRequest) error {
			r.ApprovedBy = managerID
			return transition(r, next)
		})
		return req.ID, err
	})
	return updated, res, err
}

// BookUnit lets a rostered officer book the unit of a successful request,
// taking it out of the project's inventory.
func (s *Service) BookUnit(ctx context.Context, officerID, requestID string) (HousingRequest, Result, error) {
	var updated HousingRequest
	res, err := s.mutate(ctx, "book_unit", officerID, func(tx domain.Transaction) (string, error) {
		req, project, err := requestForStaff(tx, officerID, requestID, Person.IsOfficerOf)
		if err != nil {
			return requestID, err
		}
		if req.Withdrawal == domain.WithdrawalRequested {
			return req.ID, fmt.Errorf("request %s awaits a withdrawal decision: %w", req.ID, domain.ErrInvalidTransition)
		}
		updated, err = tx.UpdateHousingRequest(req.ID, func(r *HousingRequest) error {
			r.BookedBy = officerID
			return transition(r, domain.RequestBooked)
		})
		if err != nil {
			return req.ID, err
		}
		return req.ID, adjustInventory(tx, project.Name, req.Category, -1)
	})
	return updated, res, err
}

// DecideWithdrawal lets the project's manager settle a withdrawal. An
// approved withdrawal closes the request and returns a booked unit to stock.
func (s *Service) DecideWithdrawal(ctx context.Context, managerID, requestID string, approve bool) (HousingRequest, Result, error) {
	var updated HousingRequest
	res, err := s.mutate(ctx, "decide_withdrawal", managerID, func(tx domain.Transaction) (string, error) {
		req, project, err := requestForStaff(tx, managerID, requestID, Person.IsManagerOf)
		if err != nil {
			return requestID, err
		}
		if req.Withdrawal != domain.WithdrawalRequested {
			return req.ID, fmt.Errorf("request %s withdrawal is %s: %w", req.ID, req.Withdrawal, domain.ErrInvalidTransition)
		}
		if !approve {
			updated, err = tx.UpdateHousingRequest(req.ID, func(r *HousingRequest) error {
				r.Withdrawal = domain.WithdrawalRejected
				return nil
			})
			return req.ID, err
		}
		updated, err = tx.UpdateHousingRequest(req.ID, func(r *HousingRequest) error {
			r.Withdrawal = domain.WithdrawalApproved
			return transition(r, domain.RequestUnsuccessful)
		})
		if err != nil {
			return req.ID, err
		}
		if req.Status == domain.RequestBooked {
			return req.ID, adjustInventory(tx, project.Name, req.Category, +1)
		}
		return req.ID, nil
	})
	return updated, res, err
}

func adjustInventory(tx domain.Transaction, projectName string, category UnitCategory, delta int) error {
	_, err := tx.UpdateProject(projectName, func(p *Project) error {
		if p.Units == nil {
			p.Units = make(map[UnitCategory]domain.UnitInventory)
		}
		inv := p.Units[category]
		if inv.Remaining+delta < 0 {
			return fmt.Errorf("%s %s: %w", p.Name, category, domain.ErrNoUnitsRemaining)
		}
		inv.Remaining += delta
		p.Units[category] = inv
		return nil
	})
	return err
}

// Receipt describes a booked unit.
type Receipt struct {
	RequestID     string
	ApplicantID   string
	ApplicantName string
	Age           int
	MaritalStatus domain.MaritalStatus
	ProjectName   string
	Neighbourhood string
	Category      UnitCategory
	Price         int
	BookedBy      string
}

// Receipt renders the booking receipt of a booked request. The applicant and
// the project's staff may read it.
func (s *Service) Receipt(ctx context.Context, viewerID, requestID string) (Receipt, error) {
	var out Receipt
	err := s.read(ctx, "receipt", func(view domain.TransactionView) error {
		viewer, err := findPerson(view, viewerID)
		if err != nil {
			return err
		}
		req, ok := view.FindHousingRequest(requestID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityHousingRequest, ID: requestID}
		}
		project, err := findProject(view, req.ProjectName)
		if err != nil {
			return err
		}
		if viewer.ID != req.ApplicantID && !viewer.InCharge(project) {
			return fmt.Errorf("receipt %s: %w", req.ID, domain.ErrPermissionDenied)
		}
		if req.Status != domain.RequestBooked {
			return fmt.Errorf("request %s is %s: %w", req.ID, req.Status, domain.ErrNotBooked)
		}
		applicant, err := findPerson(view, req.ApplicantID)
		if err != nil {
			return err
		}
		out = Receipt{
			RequestID:     req.ID,
			ApplicantID:   applicant.ID,
			ApplicantName: applicant.Name,
			Age:           applicant.Age,
			MaritalStatus: applicant.MaritalStatus,
			ProjectName:   project.Name,
			Neighbourhood: project.Neighbourhood,
			Category:      req.Category,
			Price:         project.Price(req.Category),
			BookedBy:      req.BookedBy,
		}
		return nil
	})
	return out, err
}
