package records

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/internal/validation"
	"housingcore/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// loader accumulates a snapshot file by file. Later files reference records
// from earlier ones, so rows pointing at skipped records are skipped too.
type loader struct {
	dir      string
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	snap     memory.Snapshot
	seq      int64
	skipped  []RecordError
}

// Load reads the registries under dir. Files that do not exist load as empty.
// Rows are assigned insertion sequence numbers in file order, so records
// sharing a timestamp keep the order in which they were written. Outside
// strict mode rejected rows are logged, skipped, and returned.
func Load(dir string, opts Options) (memory.Snapshot, []RecordError, error) {
	l := &loader{
		dir:      dir,
		opts:     opts,
		logger:   opts.logger(),
		validate: validation.New(),
		snap: memory.Snapshot{
			Persons:     map[string]domain.Person{},
			Projects:    map[string]domain.Project{},
			Requests:    map[string]domain.HousingRequest{},
			Assignments: map[string]domain.AssignmentRequest{},
			Enquiries:   map[int]domain.Enquiry{},
		},
	}
	steps := []func() error{
		l.loadPersons,
		l.loadProjects,
		l.loadRequests,
		l.loadAssignments,
		l.loadEnquiries,
		l.loadCounters,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return memory.Snapshot{}, l.skipped, err
		}
	}
	l.snap.Seq = l.seq
	l.logger.Info("records loaded",
		"dir", dir,
		"persons", len(l.snap.Persons),
		"projects", len(l.snap.Projects),
		"requests", len(l.snap.Requests),
		"assignments", len(l.snap.Assignments),
		"enquiries", len(l.snap.Enquiries),
		"skipped", len(l.skipped))
	return l.snap, l.skipped, nil
}

// reject records a bad row. It returns a non-nil error only in strict mode.
func (l *loader) reject(r row, err error) error {
	rerr := RecordError{File: r.table.file, Line: r.line, Err: err}
	if l.opts.Strict {
		return &rerr
	}
	l.logger.Warn("skipping record", "file", rerr.File, "line", rerr.Line, "error", err)
	l.skipped = append(l.skipped, rerr)
	return nil
}

func (l *loader) nextSeq() int64 {
	l.seq++
	return l.seq
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRecord, fmt.Sprintf(format, args...))
}

func (l *loader) loadPersons() error {
	t, err := readTable(l.dir, PersonsFile, "id", "name", "age", "marital_status")
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		p, err := l.decodePerson(r)
		if err == nil {
			if _, dup := l.snap.Persons[p.ID]; dup {
				err = malformed("duplicate person %s", p.ID)
			}
		}
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		l.snap.Persons[p.ID] = p
	}
	return nil
}

func (l *loader) decodePerson(r row) (domain.Person, error) {
	p := domain.Person{ID: domain.PersonKey(r.get("id")), Name: r.get("name"), Role: domain.RoleApplicant}
	age, err := strconv.Atoi(r.get("age"))
	if err != nil {
		return domain.Person{}, malformed("age %q", r.get("age"))
	}
	p.Age = age
	if p.MaritalStatus, err = domain.ParseMaritalStatus(r.get("marital_status")); err != nil {
		return domain.Person{}, err
	}
	if role := r.get("role"); role != "" {
		if p.Role, err = domain.ParseRole(role); err != nil {
			return domain.Person{}, err
		}
	}
	if p.PasswordHash, err = l.passwordHash(r.get("password")); err != nil {
		return domain.Person{}, err
	}
	if err := validation.Struct(l.validate, p); err != nil {
		return domain.Person{}, err
	}
	return p, nil
}

// passwordHash keeps bcrypt hashes as they are and hashes anything else.
func (l *loader) passwordHash(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return password, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.opts.hashCost())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (l *loader) loadProjects() error {
	t, err := readTable(l.dir, ProjectsFile, "name", "open_date", "close_date", "manager_id")
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		p, err := l.decodeProject(r)
		if err == nil {
			if _, dup := l.snap.Projects[p.Key()]; dup {
				err = malformed("duplicate project %q", p.Name)
			}
		}
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		l.snap.Projects[p.Key()] = p
	}
	return nil
}

func (l *loader) decodeProject(r row) (domain.Project, error) {
	p := domain.Project{
		Name:          r.get("name"),
		Neighbourhood: r.get("neighbourhood"),
		ManagerID:     domain.PersonKey(r.get("manager_id")),
		Units:         map[domain.UnitCategory]domain.UnitInventory{},
	}
	var err error
	if p.OpenDate, err = domain.ParseDate(r.get("open_date")); err != nil {
		return domain.Project{}, err
	}
	if p.CloseDate, err = domain.ParseDate(r.get("close_date")); err != nil {
		return domain.Project{}, err
	}
	for _, c := range []struct {
		category      domain.UnitCategory
		units, prices string
	}{
		{domain.UnitTwoRoom, "two_room_units", "two_room_price"},
		{domain.UnitThreeRoom, "three_room_units", "three_room_price"},
	} {
		remaining, err := count(r, c.units)
		if err != nil {
			return domain.Project{}, err
		}
		price, err := count(r, c.prices)
		if err != nil {
			return domain.Project{}, err
		}
		p.Units[c.category] = domain.UnitInventory{Remaining: remaining, Price: price}
	}
	if p.OfficerSlots, err = count(r, "officer_slots"); err != nil {
		return domain.Project{}, err
	}
	if visible := r.get("visible"); visible != "" {
		if p.Visible, err = strconv.ParseBool(visible); err != nil {
			return domain.Project{}, malformed("visible %q", visible)
		}
	}
	manager, ok := l.snap.Persons[p.ManagerID]
	if !ok || manager.Role != domain.RoleManager {
		return domain.Project{}, malformed("manager %s is not a known manager", p.ManagerID)
	}
	for _, id := range strings.Split(r.get("officers"), ";") {
		id = domain.PersonKey(id)
		if id == "" {
			continue
		}
		officer, ok := l.snap.Persons[id]
		if !ok || officer.Role != domain.RoleOfficer {
			return domain.Project{}, malformed("officer %s is not a known officer", id)
		}
		p.OfficerIDs = append(p.OfficerIDs, id)
	}
	if err := validation.Struct(l.validate, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// count parses an optional non-negative integer column.
func count(r row, column string) (int, error) {
	raw := r.get(column)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, malformed("%s %q", column, raw)
	}
	return n, nil
}

// timestamp parses an optional RFC 3339 column.
func timestamp(r row, column string) (time.Time, error) {
	raw := r.get(column)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, malformed("%s %q", column, raw)
	}
	return t.UTC(), nil
}

func recordID(r row) string {
	if id := r.get("id"); id != "" {
		return id
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (l *loader) project(name string) (domain.Project, error) {
	p, ok := l.snap.Projects[domain.ProjectKey(name)]
	if !ok {
		return domain.Project{}, malformed("unknown project %q", name)
	}
	return p, nil
}

func (l *loader) person(id string) error {
	if _, ok := l.snap.Persons[id]; !ok {
		return malformed("unknown person %s", id)
	}
	return nil
}

func (l *loader) loadRequests() error {
	t, err := readTable(l.dir, RequestsFile, "applicant_id", "project", "category", "status")
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		req, err := l.decodeRequest(r)
		if err == nil {
			if _, dup := l.snap.Requests[req.ID]; dup {
				err = malformed("duplicate request %s", req.ID)
			}
		}
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		req.Seq = l.nextSeq()
		l.snap.Requests[req.ID] = req
	}
	return nil
}

func (l *loader) decodeRequest(r row) (domain.HousingRequest, error) {
	req := domain.HousingRequest{
		ID:          recordID(r),
		ApplicantID: domain.PersonKey(r.get("applicant_id")),
		ApprovedBy:  domain.PersonKey(r.get("approved_by")),
		BookedBy:    domain.PersonKey(r.get("booked_by")),
		Withdrawal:  domain.WithdrawalNotRequested,
	}
	var err error
	if req.Category, err = domain.ParseUnitCategory(r.get("category")); err != nil {
		return req, err
	}
	if req.Status, err = domain.ParseRequestStatus(r.get("status")); err != nil {
		return req, err
	}
	if w := r.get("withdrawal"); w != "" {
		if req.Withdrawal, err = domain.ParseWithdrawalStatus(w); err != nil {
			return req, err
		}
	}
	if req.CreatedAt, err = timestamp(r, "created_at"); err != nil {
		return req, err
	}
	if req.UpdatedAt, err = timestamp(r, "updated_at"); err != nil {
		return req, err
	}
	if err := l.person(req.ApplicantID); err != nil {
		return req, err
	}
	project, err := l.project(r.get("project"))
	if err != nil {
		return req, err
	}
	req.ProjectName = project.Name
	if err := validation.Struct(l.validate, req); err != nil {
		return req, err
	}
	return req, nil
}

func (l *loader) loadAssignments() error {
	t, err := readTable(l.dir, AssignmentsFile, "officer_id", "project", "status")
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		a, err := l.decodeAssignment(r)
		if err == nil {
			if _, dup := l.snap.Assignments[a.ID]; dup {
				err = malformed("duplicate assignment %s", a.ID)
			}
		}
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		a.Seq = l.nextSeq()
		l.snap.Assignments[a.ID] = a
	}
	return nil
}

func (l *loader) decodeAssignment(r row) (domain.AssignmentRequest, error) {
	a := domain.AssignmentRequest{
		ID:        recordID(r),
		OfficerID: domain.PersonKey(r.get("officer_id")),
		ManagerID: domain.PersonKey(r.get("manager_id")),
	}
	var err error
	if a.Status, err = domain.ParseAssignmentStatus(r.get("status")); err != nil {
		return a, err
	}
	if a.CreatedAt, err = timestamp(r, "created_at"); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = timestamp(r, "updated_at"); err != nil {
		return a, err
	}
	if err := l.person(a.OfficerID); err != nil {
		return a, err
	}
	project, err := l.project(r.get("project"))
	if err != nil {
		return a, err
	}
	a.ProjectName = project.Name
	if a.ManagerID == "" {
		a.ManagerID = project.ManagerID
	}
	if err := validation.Struct(l.validate, a); err != nil {
		return a, err
	}
	return a, nil
}

// loadEnquiries reads ticket headers and then their messages. A ticket whose
// thread ends up empty has no opening question and is rejected.
func (l *loader) loadEnquiries() error {
	t, err := readTable(l.dir, EnquiriesFile, "id", "author_id", "project")
	if err != nil {
		return err
	}
	lines := map[int]row{}
	for _, r := range t.rows {
		e, err := l.decodeEnquiry(r)
		if err == nil {
			if _, dup := l.snap.Enquiries[e.ID]; dup {
				err = malformed("duplicate enquiry %d", e.ID)
			}
		}
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		e.Seq = l.nextSeq()
		l.snap.Enquiries[e.ID] = e
		lines[e.ID] = r
	}

	msgs, err := readTable(l.dir, MessagesFile, "enquiry_id", "author_id", "text")
	if err != nil {
		return err
	}
	for _, r := range msgs.rows {
		id, msg, err := l.decodeMessage(r)
		if err != nil {
			if err := l.reject(r, err); err != nil {
				return err
			}
			continue
		}
		e := l.snap.Enquiries[id]
		e.Messages = append(e.Messages, msg)
		l.snap.Enquiries[id] = e
	}

	for _, id := range slices.Sorted(maps.Keys(l.snap.Enquiries)) {
		e := l.snap.Enquiries[id]
		if len(e.Messages) > 0 {
			if e.CreatedAt.IsZero() {
				e.CreatedAt = e.Messages[0].SentAt
				l.snap.Enquiries[id] = e
			}
			continue
		}
		delete(l.snap.Enquiries, id)
		if err := l.reject(lines[id], malformed("enquiry %d has no opening message", id)); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) decodeEnquiry(r row) (domain.Enquiry, error) {
	id, err := strconv.Atoi(r.get("id"))
	if err != nil || id < 1 {
		return domain.Enquiry{}, malformed("enquiry id %q", r.get("id"))
	}
	e := domain.Enquiry{ID: id, AuthorID: domain.PersonKey(r.get("author_id"))}
	if e.CreatedAt, err = timestamp(r, "created_at"); err != nil {
		return domain.Enquiry{}, err
	}
	if err := l.person(e.AuthorID); err != nil {
		return domain.Enquiry{}, err
	}
	project, err := l.project(r.get("project"))
	if err != nil {
		return domain.Enquiry{}, err
	}
	e.ProjectName = project.Name
	return e, nil
}

func (l *loader) decodeMessage(r row) (int, domain.Message, error) {
	id, err := strconv.Atoi(r.get("enquiry_id"))
	if err != nil {
		return 0, domain.Message{}, malformed("enquiry id %q", r.get("enquiry_id"))
	}
	if _, ok := l.snap.Enquiries[id]; !ok {
		return 0, domain.Message{}, malformed("unknown enquiry %d", id)
	}
	msg := domain.Message{AuthorID: domain.PersonKey(r.get("author_id")), Text: r.get("text")}
	if msg.Text == "" {
		return 0, domain.Message{}, errors.Join(domain.ErrMalformedRecord, domain.ErrEmptyMessage)
	}
	if msg.SentAt, err = timestamp(r, "sent_at"); err != nil {
		return 0, domain.Message{}, err
	}
	if err := l.person(msg.AuthorID); err != nil {
		return 0, domain.Message{}, err
	}
	return id, msg, nil
}

// loadCounters restores the ticket counter so ids of deleted tickets are not
// handed out again.
func (l *loader) loadCounters() error {
	t, err := readTable(l.dir, CountersFile, "name", "value")
	if err != nil {
		return err
	}
	for _, r := range t.rows {
		switch r.get("name") {
		case "next_ticket_id":
			n, err := strconv.Atoi(r.get("value"))
			if err != nil || n < 1 {
				if err := l.reject(r, malformed("next_ticket_id %q", r.get("value"))); err != nil {
					return err
				}
				continue
			}
			l.snap.NextTicketID = n
		default:
			if err := l.reject(r, malformed("unknown counter %q", r.get("name"))); err != nil {
				return err
			}
		}
	}
	return nil
}
