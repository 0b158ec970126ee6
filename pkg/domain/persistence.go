package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// Transaction exposes the raw registry primitives a persistence implementation
// must support within an atomic scope. Insert operations only check referential
// integrity and place the record at the head of every owner list; eligibility
// and lifecycle validation belong to the engines that call them.
type Transaction interface {
	TransactionView
	Now() time.Time
	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	CreateProject(Project) (Project, error)
	UpdateProject(name string, mutator func(*Project) error) (Project, error)
	DeleteProject(name string) error
	InsertHousingRequest(HousingRequest) (HousingRequest, error)
	UpdateHousingRequest(id string, mutator func(*HousingRequest) error) (HousingRequest, error)
	InsertAssignmentRequest(AssignmentRequest) (AssignmentRequest, error)
	UpdateAssignmentRequest(id string, mutator func(*AssignmentRequest) error) (AssignmentRequest, error)
	InsertEnquiry(Enquiry) (Enquiry, error)
	UpdateEnquiry(id int, mutator func(*Enquiry) error) (Enquiry, error)
	DeleteEnquiry(id int) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ListPersons() []Person
	ListProjects() []Project
	ListHousingRequests() []HousingRequest
	ListAssignmentRequests() []AssignmentRequest
	ListEnquiries() []Enquiry
}
