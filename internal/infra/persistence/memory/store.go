// Package memory provides the in-memory registries that back every engine
// operation. The persistent backends embed it and snapshot its state after
// each committed transaction.
package memory

import (
	"context"
	"fmt"
	"housingcore/pkg/domain"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Person aliases domain.Person.
	Person = domain.Person
	// Project aliases domain.Project.
	Project = domain.Project
	// HousingRequest aliases domain.HousingRequest.
	HousingRequest = domain.HousingRequest
	// AssignmentRequest aliases domain.AssignmentRequest.
	AssignmentRequest = domain.AssignmentRequest
	// Enquiry aliases domain.Enquiry.
	Enquiry = domain.Enquiry
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// ownerIndex keeps newest-first id lists for a registry: the global order plus
// secondary indexes by owner (applicant, officer or author) and project key.
// Slices are replaced on every change and never mutated in place, so a
// shallow copy of the maps isolates a transaction from committed state.
type ownerIndex[K comparable] struct {
	all       []K
	byOwner   map[string][]K
	byProject map[string][]K
}

func newOwnerIndex[K comparable]() ownerIndex[K] {
	return ownerIndex[K]{
		byOwner:   make(map[string][]K),
		byProject: make(map[string][]K),
	}
}

func (ix *ownerIndex[K]) push(id K, owner, project string) {
	ix.all = prepend(ix.all, id)
	ix.byOwner[owner] = prepend(ix.byOwner[owner], id)
	ix.byProject[project] = prepend(ix.byProject[project], id)
}

func (ix *ownerIndex[K]) remove(id K, owner, project string) {
	ix.all = without(ix.all, id)
	ix.byOwner[owner] = without(ix.byOwner[owner], id)
	if len(ix.byOwner[owner]) == 0 {
		delete(ix.byOwner, owner)
	}
	ix.byProject[project] = without(ix.byProject[project], id)
	if len(ix.byProject[project]) == 0 {
		delete(ix.byProject, project)
	}
}

func (ix ownerIndex[K]) clone() ownerIndex[K] {
	return ownerIndex[K]{
		all:       ix.all,
		byOwner:   maps.Clone(ix.byOwner),
		byProject: maps.Clone(ix.byProject),
	}
}

func prepend[K comparable](ids []K, id K) []K {
	out := make([]K, 0, len(ids)+1)
	out = append(out, id)
	return append(out, ids...)
}

func without[K comparable](ids []K, id K) []K {
	out := make([]K, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

type memoryState struct {
	persons     map[string]Person
	projects    map[string]Project
	requests    map[string]HousingRequest
	assignments map[string]AssignmentRequest
	enquiries   map[int]Enquiry

	requestIndex    ownerIndex[string]
	assignmentIndex ownerIndex[string]
	enquiryIndex    ownerIndex[int]

	seq          int64
	nextTicketID int
}

func newMemoryState() memoryState {
	return memoryState{
		persons:         make(map[string]Person),
		projects:        make(map[string]Project),
		requests:        make(map[string]HousingRequest),
		assignments:     make(map[string]AssignmentRequest),
		enquiries:       make(map[int]Enquiry),
		requestIndex:    newOwnerIndex[string](),
		assignmentIndex: newOwnerIndex[string](),
		enquiryIndex:    newOwnerIndex[int](),
		nextTicketID:    1,
	}
}

// clone copies the registries. Records are values whose reference fields are
// deep-copied on every read and write, so copying the maps is sufficient.
func (s memoryState) clone() memoryState {
	return memoryState{
		persons:         maps.Clone(s.persons),
		projects:        maps.Clone(s.projects),
		requests:        maps.Clone(s.requests),
		assignments:     maps.Clone(s.assignments),
		enquiries:       maps.Clone(s.enquiries),
		requestIndex:    s.requestIndex.clone(),
		assignmentIndex: s.assignmentIndex.clone(),
		enquiryIndex:    s.enquiryIndex.clone(),
		seq:             s.seq,
		nextTicketID:    s.nextTicketID,
	}
}

func (s *memoryState) nextSeq() int64 {
	s.seq++
	return s.seq
}

func cloneProject(p Project) Project {
	cp := p
	if p.Units != nil {
		cp.Units = maps.Clone(p.Units)
	}
	if p.OfficerIDs != nil {
		cp.OfficerIDs = append([]string(nil), p.OfficerIDs...)
	}
	return cp
}

func cloneEnquiry(e Enquiry) Enquiry {
	cp := e
	if e.Messages != nil {
		cp.Messages = append([]domain.Message(nil), e.Messages...)
	}
	return cp
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Store provides an in-memory transactional store for the housing registries.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Owner
// lists are rebuilt newest-first from timestamps.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider stamped onto new records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Rules are evaluated while the write lock is held, so checks and
// inserts are one critical section.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

// Read-only accessors shared by views and transactions -----------------------

func (v transactionView) ListPersons() []Person { return listPersons(v.state) }
func (v transactionView) FindPerson(id string) (Person, bool) {
	return findPerson(v.state, id)
}
func (v transactionView) FindPersonByName(name string) (Person, bool) {
	return findPersonByName(v.state, name)
}
func (v transactionView) ListProjects() []Project { return listProjects(v.state) }
func (v transactionView) FindProject(name string) (Project, bool) {
	return findProject(v.state, name)
}
func (v transactionView) ListHousingRequests() []HousingRequest {
	return requestsFor(v.state, v.state.requestIndex.all)
}
func (v transactionView) FindHousingRequest(id string) (HousingRequest, bool) {
	r, ok := v.state.requests[id]
	return r, ok
}
func (v transactionView) RequestsByApplicant(applicantID string) []HousingRequest {
	return requestsFor(v.state, v.state.requestIndex.byOwner[applicantID])
}
func (v transactionView) RequestsByProject(name string) []HousingRequest {
	return requestsFor(v.state, v.state.requestIndex.byProject[domain.ProjectKey(name)])
}
func (v transactionView) ListAssignmentRequests() []AssignmentRequest {
	return assignmentsFor(v.state, v.state.assignmentIndex.all)
}
func (v transactionView) FindAssignmentRequest(id string) (AssignmentRequest, bool) {
	a, ok := v.state.assignments[id]
	return a, ok
}
func (v transactionView) AssignmentsByOfficer(officerID string) []AssignmentRequest {
	return assignmentsFor(v.state, v.state.assignmentIndex.byOwner[officerID])
}
func (v transactionView) AssignmentsByProject(name string) []AssignmentRequest {
	return assignmentsFor(v.state, v.state.assignmentIndex.byProject[domain.ProjectKey(name)])
}
func (v transactionView) ListEnquiries() []Enquiry {
	return enquiriesFor(v.state, v.state.enquiryIndex.all)
}
func (v transactionView) FindEnquiry(id int) (Enquiry, bool) {
	e, ok := v.state.enquiries[id]
	if !ok {
		return Enquiry{}, false
	}
	return cloneEnquiry(e), true
}
func (v transactionView) EnquiriesByAuthor(authorID string) []Enquiry {
	return enquiriesFor(v.state, v.state.enquiryIndex.byOwner[authorID])
}
func (v transactionView) EnquiriesByProject(name string) []Enquiry {
	return enquiriesFor(v.state, v.state.enquiryIndex.byProject[domain.ProjectKey(name)])
}

func listPersons(state *memoryState) []Person {
	out := make([]Person, 0, len(state.persons))
	for _, p := range state.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func findPerson(state *memoryState, id string) (Person, bool) {
	if p, ok := state.persons[id]; ok {
		return p, true
	}
	p, ok := state.persons[domain.PersonKey(id)]
	return p, ok
}

func findPersonByName(state *memoryState, name string) (Person, bool) {
	want := strings.TrimSpace(name)
	for _, p := range listPersons(state) {
		if strings.EqualFold(strings.TrimSpace(p.Name), want) {
			return p, true
		}
	}
	return Person{}, false
}

func listProjects(state *memoryState) []Project {
	out := make([]Project, 0, len(state.projects))
	for _, p := range state.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func findProject(state *memoryState, name string) (Project, bool) {
	p, ok := state.projects[domain.ProjectKey(name)]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

func requestsFor(state *memoryState, ids []string) []HousingRequest {
	out := make([]HousingRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, state.requests[id])
	}
	return out
}

func assignmentsFor(state *memoryState, ids []string) []AssignmentRequest {
	out := make([]AssignmentRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, state.assignments[id])
	}
	return out
}

func enquiriesFor(state *memoryState, ids []int) []Enquiry {
	out := make([]Enquiry, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneEnquiry(state.enquiries[id]))
	}
	return out
}

// Transaction primitives -------------------------------------------------------

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) view() transactionView { return transactionView{state: &tx.state} }

// Now returns the timestamp shared by every record written in the transaction.
func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) ListPersons() []Person { return tx.view().ListPersons() }
func (tx *transaction) FindPerson(id string) (Person, bool) {
	return tx.view().FindPerson(id)
}
func (tx *transaction) FindPersonByName(name string) (Person, bool) {
	return tx.view().FindPersonByName(name)
}
func (tx *transaction) ListProjects() []Project { return tx.view().ListProjects() }
func (tx *transaction) FindProject(name string) (Project, bool) {
	return tx.view().FindProject(name)
}
func (tx *transaction) ListHousingRequests() []HousingRequest {
	return tx.view().ListHousingRequests()
}
func (tx *transaction) FindHousingRequest(id string) (HousingRequest, bool) {
	return tx.view().FindHousingRequest(id)
}
func (tx *transaction) RequestsByApplicant(applicantID string) []HousingRequest {
	return tx.view().RequestsByApplicant(applicantID)
}
func (tx *transaction) RequestsByProject(name string) []HousingRequest {
	return tx.view().RequestsByProject(name)
}
func (tx *transaction) ListAssignmentRequests() []AssignmentRequest {
	return tx.view().ListAssignmentRequests()
}
func (tx *transaction) FindAssignmentRequest(id string) (AssignmentRequest, bool) {
	return tx.view().FindAssignmentRequest(id)
}
func (tx *transaction) AssignmentsByOfficer(officerID string) []AssignmentRequest {
	return tx.view().AssignmentsByOfficer(officerID)
}
func (tx *transaction) AssignmentsByProject(name string) []AssignmentRequest {
	return tx.view().AssignmentsByProject(name)
}
func (tx *transaction) ListEnquiries() []Enquiry { return tx.view().ListEnquiries() }
func (tx *transaction) FindEnquiry(id int) (Enquiry, bool) {
	return tx.view().FindEnquiry(id)
}
func (tx *transaction) EnquiriesByAuthor(authorID string) []Enquiry {
	return tx.view().EnquiriesByAuthor(authorID)
}
func (tx *transaction) EnquiriesByProject(name string) []Enquiry {
	return tx.view().EnquiriesByProject(name)
}

// checkPerson refuses identities the bucket decoder would not read back.
func checkPerson(p Person) error {
	if _, err := domain.ParseMaritalStatus(string(p.MaritalStatus)); err != nil {
		return fmt.Errorf("person %s: %w", p.ID, err)
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		return fmt.Errorf("person %s: %w", p.ID, err)
	}
	return nil
}

// CreatePerson stores a new identity under its upper-cased id.
func (tx *transaction) CreatePerson(p Person) (Person, error) {
	p.ID = domain.PersonKey(p.ID)
	if p.ID == "" {
		return Person{}, fmt.Errorf("person id is required")
	}
	if _, exists := findPerson(&tx.state, p.ID); exists {
		return Person{}, fmt.Errorf("person %q already exists", p.ID)
	}
	if p.Role == "" {
		p.Role = domain.RoleApplicant
	}
	if err := checkPerson(p); err != nil {
		return Person{}, err
	}
	tx.state.persons[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePerson mutates an existing identity. The id is immutable.
func (tx *transaction) UpdatePerson(id string, mutator func(*Person) error) (Person, error) {
	current, ok := findPerson(&tx.state, id)
	if !ok {
		return Person{}, domain.ErrNotFound{Entity: domain.EntityPerson, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Person{}, err
	}
	current.ID = before.ID
	if err := checkPerson(current); err != nil {
		return Person{}, err
	}
	tx.state.persons[current.ID] = current
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) checkStaff(p Project) error {
	if p.ManagerID != "" {
		if _, ok := tx.state.persons[p.ManagerID]; !ok {
			return fmt.Errorf("manager %q not found for project %q", p.ManagerID, p.Name)
		}
	}
	for _, officerID := range p.OfficerIDs {
		if _, ok := tx.state.persons[officerID]; !ok {
			return fmt.Errorf("officer %q not found for project %q", officerID, p.Name)
		}
	}
	return nil
}

// CreateProject stores a project under its case-insensitive name.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	key := p.Key()
	if key == "" {
		return Project{}, fmt.Errorf("project name is required")
	}
	if _, exists := tx.state.projects[key]; exists {
		return Project{}, fmt.Errorf("project %q already exists", p.Name)
	}
	p.OfficerIDs = dedupeStrings(p.OfficerIDs)
	if p.Units == nil {
		p.Units = map[domain.UnitCategory]domain.UnitInventory{}
	}
	if err := tx.checkStaff(p); err != nil {
		return Project{}, err
	}
	tx.state.projects[key] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates an existing project. The name is immutable.
func (tx *transaction) UpdateProject(name string, mutator func(*Project) error) (Project, error) {
	key := domain.ProjectKey(name)
	current, ok := tx.state.projects[key]
	if !ok {
		return Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: name}
	}
	before := cloneProject(current)
	current = cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.Name = before.Name
	current.OfficerIDs = dedupeStrings(current.OfficerIDs)
	if err := tx.checkStaff(current); err != nil {
		return Project{}, err
	}
	tx.state.projects[key] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project that no request or enquiry references.
func (tx *transaction) DeleteProject(name string) error {
	key := domain.ProjectKey(name)
	current, ok := tx.state.projects[key]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: name}
	}
	if n := len(tx.state.requestIndex.byProject[key]); n > 0 {
		return fmt.Errorf("project %q still referenced by %d housing requests", current.Name, n)
	}
	if n := len(tx.state.assignmentIndex.byProject[key]); n > 0 {
		return fmt.Errorf("project %q still referenced by %d assignment requests", current.Name, n)
	}
	if n := len(tx.state.enquiryIndex.byProject[key]); n > 0 {
		return fmt.Errorf("project %q still referenced by %d enquiries", current.Name, n)
	}
	delete(tx.state.projects, key)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// resolveRefs checks that the person and project exist and returns the
// canonical project name.
func (tx *transaction) resolveRefs(entity domain.EntityType, personID, projectName string) (string, error) {
	if _, ok := tx.state.persons[personID]; !ok {
		return "", fmt.Errorf("%s: %w", entity, domain.ErrNotFound{Entity: domain.EntityPerson, ID: personID})
	}
	project, ok := tx.state.projects[domain.ProjectKey(projectName)]
	if !ok {
		return "", fmt.Errorf("%s: %w", entity, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectName})
	}
	return project.Name, nil
}

// InsertHousingRequest is the raw append primitive: it checks references only
// and places the request at the head of the global, project and applicant lists.
func (tx *transaction) InsertHousingRequest(r HousingRequest) (HousingRequest, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.requests[r.ID]; exists {
		return HousingRequest{}, fmt.Errorf("housing request %q already exists", r.ID)
	}
	name, err := tx.resolveRefs(domain.EntityHousingRequest, r.ApplicantID, r.ProjectName)
	if err != nil {
		return HousingRequest{}, err
	}
	r.ProjectName = name
	if r.Status == "" {
		r.Status = domain.RequestPending
	}
	if r.Withdrawal == "" {
		r.Withdrawal = domain.WithdrawalNotRequested
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tx.now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	r.Seq = tx.state.nextSeq()
	tx.state.requests[r.ID] = r
	tx.state.requestIndex.push(r.ID, r.ApplicantID, domain.ProjectKey(name))
	tx.recordChange(Change{Entity: domain.EntityHousingRequest, Action: domain.ActionCreate, After: r})
	return r, nil
}

// UpdateHousingRequest mutates a request. Identity, ownership and ordering
// fields are immutable.
func (tx *transaction) UpdateHousingRequest(id string, mutator func(*HousingRequest) error) (HousingRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return HousingRequest{}, domain.ErrNotFound{Entity: domain.EntityHousingRequest, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return HousingRequest{}, err
	}
	current.ID = before.ID
	current.Seq = before.Seq
	current.ApplicantID = before.ApplicantID
	current.ProjectName = before.ProjectName
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.requests[id] = current
	tx.recordChange(Change{Entity: domain.EntityHousingRequest, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// InsertAssignmentRequest is the raw append primitive for assignment requests.
// The manager reference is derived from the project when not supplied.
func (tx *transaction) InsertAssignmentRequest(a AssignmentRequest) (AssignmentRequest, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	if _, exists := tx.state.assignments[a.ID]; exists {
		return AssignmentRequest{}, fmt.Errorf("assignment request %q already exists", a.ID)
	}
	name, err := tx.resolveRefs(domain.EntityAssignmentRequest, a.OfficerID, a.ProjectName)
	if err != nil {
		return AssignmentRequest{}, err
	}
	a.ProjectName = name
	if a.ManagerID == "" {
		a.ManagerID = tx.state.projects[domain.ProjectKey(name)].ManagerID
	}
	if a.Status == "" {
		a.Status = domain.AssignmentApplied
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = tx.now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	a.Seq = tx.state.nextSeq()
	tx.state.assignments[a.ID] = a
	tx.state.assignmentIndex.push(a.ID, a.OfficerID, domain.ProjectKey(name))
	tx.recordChange(Change{Entity: domain.EntityAssignmentRequest, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAssignmentRequest mutates an assignment request.
func (tx *transaction) UpdateAssignmentRequest(id string, mutator func(*AssignmentRequest) error) (AssignmentRequest, error) {
	current, ok := tx.state.assignments[id]
	if !ok {
		return AssignmentRequest{}, domain.ErrNotFound{Entity: domain.EntityAssignmentRequest, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return AssignmentRequest{}, err
	}
	current.ID = before.ID
	current.Seq = before.Seq
	current.OfficerID = before.OfficerID
	current.ProjectName = before.ProjectName
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.assignments[id] = current
	tx.recordChange(Change{Entity: domain.EntityAssignmentRequest, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// InsertEnquiry stores a new ticket. A zero ID takes the next ticket number;
// explicit ids advance the counter so numbers are never reused.
func (tx *transaction) InsertEnquiry(e Enquiry) (Enquiry, error) {
	if len(e.Messages) == 0 {
		return Enquiry{}, fmt.Errorf("enquiry: %w", domain.ErrEmptyMessage)
	}
	if e.ID == 0 {
		e.ID = tx.state.nextTicketID
	}
	if _, exists := tx.state.enquiries[e.ID]; exists {
		return Enquiry{}, fmt.Errorf("enquiry %d already exists", e.ID)
	}
	name, err := tx.resolveRefs(domain.EntityEnquiry, e.AuthorID, e.ProjectName)
	if err != nil {
		return Enquiry{}, err
	}
	e.ProjectName = name
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.now
	}
	for i := range e.Messages {
		if e.Messages[i].SentAt.IsZero() {
			e.Messages[i].SentAt = e.CreatedAt
		}
	}
	if e.ID >= tx.state.nextTicketID {
		tx.state.nextTicketID = e.ID + 1
	}
	e.Seq = tx.state.nextSeq()
	tx.state.enquiries[e.ID] = cloneEnquiry(e)
	tx.state.enquiryIndex.push(e.ID, e.AuthorID, domain.ProjectKey(name))
	tx.recordChange(Change{Entity: domain.EntityEnquiry, Action: domain.ActionCreate, After: cloneEnquiry(e)})
	return cloneEnquiry(e), nil
}

// UpdateEnquiry mutates a ticket's thread.
func (tx *transaction) UpdateEnquiry(id int, mutator func(*Enquiry) error) (Enquiry, error) {
	current, ok := tx.state.enquiries[id]
	if !ok {
		return Enquiry{}, fmt.Errorf("enquiry %d: %w", id, domain.ErrTicketNotFound)
	}
	before := cloneEnquiry(current)
	current = cloneEnquiry(current)
	if err := mutator(&current); err != nil {
		return Enquiry{}, err
	}
	current.ID = before.ID
	current.Seq = before.Seq
	current.AuthorID = before.AuthorID
	current.ProjectName = before.ProjectName
	current.CreatedAt = before.CreatedAt
	tx.state.enquiries[id] = cloneEnquiry(current)
	tx.recordChange(Change{Entity: domain.EntityEnquiry, Action: domain.ActionUpdate, Before: before, After: cloneEnquiry(current)})
	return cloneEnquiry(current), nil
}

// DeleteEnquiry removes a ticket. Its number is not reissued.
func (tx *transaction) DeleteEnquiry(id int) error {
	current, ok := tx.state.enquiries[id]
	if !ok {
		return fmt.Errorf("enquiry %d: %w", id, domain.ErrTicketNotFound)
	}
	delete(tx.state.enquiries, id)
	tx.state.enquiryIndex.remove(id, current.AuthorID, domain.ProjectKey(current.ProjectName))
	tx.recordChange(Change{Entity: domain.EntityEnquiry, Action: domain.ActionDelete, Before: cloneEnquiry(current)})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetPerson retrieves a person by id from committed state.
func (s *Store) GetPerson(id string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findPerson(&s.state, id)
}

// GetProject retrieves a project by case-insensitive name from committed state.
func (s *Store) GetProject(name string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findProject(&s.state, name)
}

// ListPersons returns all persons ordered by id.
func (s *Store) ListPersons() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPersons(&s.state)
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProjects(&s.state)
}

// ListHousingRequests returns every housing request, newest first.
func (s *Store) ListHousingRequests() []HousingRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return requestsFor(&s.state, s.state.requestIndex.all)
}

// ListAssignmentRequests returns every assignment request, newest first.
func (s *Store) ListAssignmentRequests() []AssignmentRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return assignmentsFor(&s.state, s.state.assignmentIndex.all)
}

// ListEnquiries returns every enquiry, newest first.
func (s *Store) ListEnquiries() []Enquiry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return enquiriesFor(&s.state, s.state.enquiryIndex.all)
}
