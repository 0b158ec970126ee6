// Package domain defines the housing application entities, value types, and
// rule evaluation primitives shared by the engines and persistence layers.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPerson identifies an applicant, officer or manager record.
	EntityPerson EntityType = "person"
	// EntityProject identifies a housing project record.
	EntityProject EntityType = "project"
	// EntityHousingRequest identifies an applicant's request for a unit.
	EntityHousingRequest EntityType = "housing_request"
	// EntityAssignmentRequest identifies an officer's request to handle a project.
	EntityAssignmentRequest EntityType = "assignment_request"
	// EntityEnquiry identifies an enquiry ticket.
	EntityEnquiry EntityType = "enquiry"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Person is a single identity. Officers and managers are applicants with
// extended capability expressed by Role, not separate records.
type Person struct {
	ID            string        `json:"id" validate:"required,nric"`
	Name          string        `json:"name" validate:"required"`
	Age           int           `json:"age" validate:"gte=0,lte=150"`
	MaritalStatus MaritalStatus `json:"marital_status"`
	Role          Role          `json:"role"`
	PasswordHash  string        `json:"password_hash,omitempty"`
}

// IsStaff reports whether the person administers projects.
func (p Person) IsStaff() bool {
	return p.Role == RoleOfficer || p.Role == RoleManager
}

// IsManagerOf reports whether p is the manager responsible for project.
func (p Person) IsManagerOf(project Project) bool {
	return p.Role == RoleManager && project.ManagerID == p.ID
}

// IsOfficerOf reports whether p is an officer on the project's staff roster.
func (p Person) IsOfficerOf(project Project) bool {
	return p.Role == RoleOfficer && project.HasOfficer(p.ID)
}

// InCharge reports whether p manages or staffs the project.
func (p Person) InCharge(project Project) bool {
	return p.IsManagerOf(project) || project.HasOfficer(p.ID)
}

// UnitInventory is the remaining count and price of one unit category.
type UnitInventory struct {
	Remaining int `json:"remaining" validate:"gte=0"`
	Price     int `json:"price" validate:"gte=0"`
}

// Project is a housing project. Its Name is the case-insensitive key.
type Project struct {
	Name          string                         `json:"name" validate:"required"`
	Neighbourhood string                         `json:"neighbourhood"`
	Units         map[UnitCategory]UnitInventory `json:"units"`
	OpenDate      time.Time                      `json:"open_date"`
	CloseDate     time.Time                      `json:"close_date"`
	ManagerID     string                         `json:"manager_id"`
	Visible       bool                           `json:"visible"`
	OfficerIDs    []string                       `json:"officer_ids"`
	OfficerSlots  int                            `json:"officer_slots" validate:"gte=0"`
}

// PersonKey normalises a person id into its registry key. Ids are stored
// upper-cased.
func PersonKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ProjectKey normalises a project name into its registry key.
func ProjectKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Key returns the registry key of the project.
func (p Project) Key() string { return ProjectKey(p.Name) }

// Window returns the inclusive application window.
func (p Project) Window() Window {
	return Window{Open: p.OpenDate, Close: p.CloseDate}
}

// Remaining returns the remaining count for the category.
func (p Project) Remaining(category UnitCategory) int {
	return p.Units[category].Remaining
}

// Price returns the price of the category.
func (p Project) Price(category UnitCategory) int {
	return p.Units[category].Price
}

// HasOfficer reports whether id is on the staff roster.
func (p Project) HasOfficer(id string) bool {
	for _, officerID := range p.OfficerIDs {
		if officerID == id {
			return true
		}
	}
	return false
}

// SlotsLeft returns the number of unfilled officer slots.
func (p Project) SlotsLeft() int {
	left := p.OfficerSlots - len(p.OfficerIDs)
	if left < 0 {
		return 0
	}
	return left
}

// HousingRequest is an applicant's request for a unit of a given category.
type HousingRequest struct {
	ID          string           `json:"id"`
	Seq         int64            `json:"seq"`
	ApplicantID string           `json:"applicant_id" validate:"required"`
	ProjectName string           `json:"project_name" validate:"required"`
	Category    UnitCategory     `json:"category"`
	Status      RequestStatus    `json:"status"`
	Withdrawal  WithdrawalStatus `json:"withdrawal"`
	ApprovedBy  string           `json:"approved_by,omitempty"`
	BookedBy    string           `json:"booked_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsActive reports whether the request still counts as the applicant's application.
func (r HousingRequest) IsActive() bool {
	return r.Status != RequestUnsuccessful
}

// AssignmentRequest is an officer's request to administer a project.
type AssignmentRequest struct {
	ID          string           `json:"id"`
	Seq         int64            `json:"seq"`
	OfficerID   string           `json:"officer_id" validate:"required"`
	ProjectName string           `json:"project_name" validate:"required"`
	ManagerID   string           `json:"manager_id"`
	Status      AssignmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
