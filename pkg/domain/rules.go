package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
// Owner-scoped listings are newest-first.
type RuleView interface {
	ListPersons() []Person
	FindPerson(id string) (Person, bool)
	FindPersonByName(name string) (Person, bool)
	ListProjects() []Project
	FindProject(name string) (Project, bool)
	ListHousingRequests() []HousingRequest
	FindHousingRequest(id string) (HousingRequest, bool)
	RequestsByApplicant(applicantID string) []HousingRequest
	RequestsByProject(name string) []HousingRequest
	ListAssignmentRequests() []AssignmentRequest
	FindAssignmentRequest(id string) (AssignmentRequest, bool)
	AssignmentsByOfficer(officerID string) []AssignmentRequest
	AssignmentsByProject(name string) []AssignmentRequest
	ListEnquiries() []Enquiry
	FindEnquiry(id int) (Enquiry, bool)
	EnquiriesByAuthor(authorID string) []Enquiry
	EnquiriesByProject(name string) []Enquiry
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
