package memory

import (
	"housingcore/pkg/domain"
	"maps"
	"sort"
	"time"
)

// Snapshot captures a point-in-time clone of the store state. Owner lists are
// not part of it; they are recomputed newest-first when a snapshot is imported.
type Snapshot struct {
	Persons      map[string]Person            `json:"persons"`
	Projects     map[string]Project           `json:"projects"`
	Requests     map[string]HousingRequest    `json:"requests"`
	Assignments  map[string]AssignmentRequest `json:"assignments"`
	Enquiries    map[int]Enquiry              `json:"enquiries"`
	NextTicketID int                          `json:"next_ticket_id"`
	Seq          int64                        `json:"seq"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Persons:      make(map[string]Person, len(state.persons)),
		Projects:     make(map[string]Project, len(state.projects)),
		Requests:     make(map[string]HousingRequest, len(state.requests)),
		Assignments:  make(map[string]AssignmentRequest, len(state.assignments)),
		Enquiries:    make(map[int]Enquiry, len(state.enquiries)),
		NextTicketID: state.nextTicketID,
		Seq:          state.seq,
	}
	for k, v := range state.persons {
		s.Persons[k] = v
	}
	for k, v := range state.projects {
		s.Projects[k] = cloneProject(v)
	}
	for k, v := range state.requests {
		s.Requests[k] = v
	}
	for k, v := range state.assignments {
		s.Assignments[k] = v
	}
	for k, v := range state.enquiries {
		s.Enquiries[k] = cloneEnquiry(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Persons {
		state.persons[k] = v
	}
	for k, v := range s.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range s.Requests {
		state.requests[k] = v
	}
	for k, v := range s.Assignments {
		state.assignments[k] = v
	}
	for k, v := range s.Enquiries {
		state.enquiries[k] = cloneEnquiry(v)
	}
	state.seq = s.Seq
	state.nextTicketID = s.NextTicketID

	for _, id := range oldestFirst(state.requests, func(r HousingRequest) (time.Time, int64) { return r.CreatedAt, r.Seq }) {
		r := state.requests[id]
		state.requestIndex.push(id, r.ApplicantID, domain.ProjectKey(r.ProjectName))
	}
	for _, id := range oldestFirst(state.assignments, func(a AssignmentRequest) (time.Time, int64) { return a.CreatedAt, a.Seq }) {
		a := state.assignments[id]
		state.assignmentIndex.push(id, a.OfficerID, domain.ProjectKey(a.ProjectName))
	}
	for _, id := range oldestFirst(state.enquiries, func(e Enquiry) (time.Time, int64) { return e.CreatedAt, e.Seq }) {
		e := state.enquiries[id]
		state.enquiryIndex.push(id, e.AuthorID, domain.ProjectKey(e.ProjectName))
	}
	return state
}

// oldestFirst orders keys by (timestamp, seq) ascending so that pushing them
// in turn leaves the newest record at index 0.
func oldestFirst[K comparable, V any](records map[K]V, order func(V) (time.Time, int64)) []K {
	type entry struct {
		key K
		at  time.Time
		seq int64
	}
	entries := make([]entry, 0, len(records))
	for k, v := range records {
		at, seq := order(v)
		entries = append(entries, entry{key: k, at: at, seq: seq})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.Before(entries[j].at)
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]K, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// migrateSnapshot normalises snapshots coming from older stores or the record
// loader: nil maps, project keys, default sub-statuses, insertion sequence
// numbers and the ticket counter.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	snapshot.Persons = cloneOrEmpty(snapshot.Persons)
	snapshot.Requests = cloneOrEmpty(snapshot.Requests)
	snapshot.Assignments = cloneOrEmpty(snapshot.Assignments)
	snapshot.Enquiries = cloneOrEmpty(snapshot.Enquiries)

	projects := make(map[string]Project, len(snapshot.Projects))
	for _, p := range snapshot.Projects {
		p = cloneProject(p)
		if p.Units == nil {
			p.Units = map[domain.UnitCategory]domain.UnitInventory{}
		}
		p.OfficerIDs = dedupeStrings(p.OfficerIDs)
		projects[p.Key()] = p
	}
	snapshot.Projects = projects
	canonical := func(name string) string {
		if p, ok := projects[domain.ProjectKey(name)]; ok {
			return p.Name
		}
		return name
	}

	seq := snapshot.Seq
	observe := func(current int64) {
		if current > seq {
			seq = current
		}
	}
	for _, r := range snapshot.Requests {
		observe(r.Seq)
	}
	for _, a := range snapshot.Assignments {
		observe(a.Seq)
	}
	for _, e := range snapshot.Enquiries {
		observe(e.Seq)
	}

	for _, id := range oldestFirst(snapshot.Requests, func(r HousingRequest) (time.Time, int64) { return r.CreatedAt, r.Seq }) {
		r := snapshot.Requests[id]
		r.ID = id
		if r.Seq == 0 {
			seq++
			r.Seq = seq
		}
		if r.Withdrawal == "" {
			r.Withdrawal = domain.WithdrawalNotRequested
		}
		r.ProjectName = canonical(r.ProjectName)
		snapshot.Requests[id] = r
	}
	for _, id := range oldestFirst(snapshot.Assignments, func(a AssignmentRequest) (time.Time, int64) { return a.CreatedAt, a.Seq }) {
		a := snapshot.Assignments[id]
		a.ID = id
		if a.Seq == 0 {
			seq++
			a.Seq = seq
		}
		a.ProjectName = canonical(a.ProjectName)
		if a.ManagerID == "" {
			a.ManagerID = projects[domain.ProjectKey(a.ProjectName)].ManagerID
		}
		snapshot.Assignments[id] = a
	}
	next := snapshot.NextTicketID
	for _, id := range oldestFirst(snapshot.Enquiries, func(e Enquiry) (time.Time, int64) { return e.CreatedAt, e.Seq }) {
		e := snapshot.Enquiries[id]
		e.ID = id
		if e.Seq == 0 {
			seq++
			e.Seq = seq
		}
		e.ProjectName = canonical(e.ProjectName)
		snapshot.Enquiries[id] = e
		if id >= next {
			next = id + 1
		}
	}
	if next < 1 {
		next = 1
	}
	snapshot.NextTicketID = next
	snapshot.Seq = seq
	return snapshot
}

func cloneOrEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return maps.Clone(m)
}
