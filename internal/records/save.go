package records

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/pkg/domain"
)

var (
	personHeader     = []string{"id", "name", "age", "marital_status", "role", "password"}
	projectHeader    = []string{"name", "neighbourhood", "two_room_units", "two_room_price", "three_room_units", "three_room_price", "open_date", "close_date", "manager_id", "officer_slots", "officers", "visible"}
	requestHeader    = []string{"id", "applicant_id", "project", "category", "status", "withdrawal", "approved_by", "booked_by", "created_at", "updated_at"}
	assignmentHeader = []string{"id", "officer_id", "project", "manager_id", "status", "created_at", "updated_at"}
	enquiryHeader    = []string{"id", "author_id", "project", "created_at"}
	messageHeader    = []string{"enquiry_id", "author_id", "sent_at", "text"}
	counterHeader    = []string{"name", "value"}
)

// Save writes snapshot under dir, creating it when needed. Records are written
// oldest first so that Load reproduces the same newest-first order.
func Save(dir string, snapshot memory.Snapshot) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tables := []struct {
		file   string
		header []string
		rows   [][]string
	}{
		{PersonsFile, personHeader, personRows(snapshot)},
		{ProjectsFile, projectHeader, projectRows(snapshot)},
		{RequestsFile, requestHeader, requestRows(snapshot)},
		{AssignmentsFile, assignmentHeader, assignmentRows(snapshot)},
		{EnquiriesFile, enquiryHeader, enquiryRows(snapshot)},
		{MessagesFile, messageHeader, messageRows(snapshot)},
		{CountersFile, counterHeader, [][]string{{"next_ticket_id", strconv.Itoa(max(snapshot.NextTicketID, 1))}}},
	}
	for _, t := range tables {
		if err := writeTable(dir, t.file, t.header, t.rows); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// oldestFirst orders records by (created, seq) ascending.
func oldestFirst[K comparable, V any](records map[K]V, order func(V) (time.Time, int64)) []V {
	out := slices.Collect(maps.Values(records))
	slices.SortStableFunc(out, func(a, b V) int {
		at, aseq := order(a)
		bt, bseq := order(b)
		if c := at.Compare(bt); c != 0 {
			return c
		}
		return cmp.Compare(aseq, bseq)
	})
	return out
}

func personRows(s memory.Snapshot) [][]string {
	rows := make([][]string, 0, len(s.Persons))
	for _, id := range slices.Sorted(maps.Keys(s.Persons)) {
		p := s.Persons[id]
		role := p.Role
		if role == "" {
			role = domain.RoleApplicant
		}
		rows = append(rows, []string{p.ID, p.Name, strconv.Itoa(p.Age), string(p.MaritalStatus), string(role), p.PasswordHash})
	}
	return rows
}

func projectRows(s memory.Snapshot) [][]string {
	rows := make([][]string, 0, len(s.Projects))
	for _, key := range slices.Sorted(maps.Keys(s.Projects)) {
		p := s.Projects[key]
		two, three := p.Units[domain.UnitTwoRoom], p.Units[domain.UnitThreeRoom]
		rows = append(rows, []string{
			p.Name,
			p.Neighbourhood,
			strconv.Itoa(two.Remaining),
			strconv.Itoa(two.Price),
			strconv.Itoa(three.Remaining),
			strconv.Itoa(three.Price),
			domain.FormatDate(p.OpenDate),
			domain.FormatDate(p.CloseDate),
			p.ManagerID,
			strconv.Itoa(p.OfficerSlots),
			strings.Join(p.OfficerIDs, ";"),
			strconv.FormatBool(p.Visible),
		})
	}
	return rows
}

func requestRows(s memory.Snapshot) [][]string {
	var rows [][]string
	for _, r := range oldestFirst(s.Requests, func(r domain.HousingRequest) (time.Time, int64) { return r.CreatedAt, r.Seq }) {
		withdrawal := r.Withdrawal
		if withdrawal == "" {
			withdrawal = domain.WithdrawalNotRequested
		}
		rows = append(rows, []string{
			r.ID, r.ApplicantID, r.ProjectName, string(r.Category), string(r.Status), string(withdrawal),
			r.ApprovedBy, r.BookedBy, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		})
	}
	return rows
}

func assignmentRows(s memory.Snapshot) [][]string {
	var rows [][]string
	for _, a := range oldestFirst(s.Assignments, func(a domain.AssignmentRequest) (time.Time, int64) { return a.CreatedAt, a.Seq }) {
		rows = append(rows, []string{
			a.ID, a.OfficerID, a.ProjectName, a.ManagerID, string(a.Status), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
		})
	}
	return rows
}

func orderedEnquiries(s memory.Snapshot) []domain.Enquiry {
	return oldestFirst(s.Enquiries, func(e domain.Enquiry) (time.Time, int64) { return e.CreatedAt, e.Seq })
}

func enquiryRows(s memory.Snapshot) [][]string {
	var rows [][]string
	for _, e := range orderedEnquiries(s) {
		rows = append(rows, []string{strconv.Itoa(e.ID), e.AuthorID, e.ProjectName, formatTime(e.CreatedAt)})
	}
	return rows
}

func messageRows(s memory.Snapshot) [][]string {
	var rows [][]string
	for _, e := range orderedEnquiries(s) {
		for _, m := range e.Messages {
			rows = append(rows, []string{strconv.Itoa(e.ID), m.AuthorID, formatTime(m.SentAt), m.Text})
		}
	}
	return rows
}
