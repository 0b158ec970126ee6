package core

import "housingcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Person             = domain.Person
	Project            = domain.Project
	HousingRequest     = domain.HousingRequest
	AssignmentRequest  = domain.AssignmentRequest
	Enquiry            = domain.Enquiry
	Message            = domain.Message
	UnitCategory       = domain.UnitCategory
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityPerson            = domain.EntityPerson
	EntityProject           = domain.EntityProject
	EntityHousingRequest    = domain.EntityHousingRequest
	EntityAssignmentRequest = domain.EntityAssignmentRequest
	EntityEnquiry           = domain.EntityEnquiry
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
