package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting SQL backends. Each bucket holds one
// registry encoded as a JSON document.
const (
	BucketPersons     = "persons"
	BucketProjects    = "projects"
	BucketRequests    = "requests"
	BucketAssignments = "assignments"
	BucketEnquiries   = "enquiries"
	BucketCounters    = "counters"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketPersons, BucketProjects, BucketRequests, BucketAssignments, BucketEnquiries, BucketCounters}

type counters struct {
	NextTicketID int   `json:"next_ticket_id"`
	Seq          int64 `json:"seq"`
}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case BucketPersons:
		return &s.Persons, true
	case BucketProjects:
		return &s.Projects, true
	case BucketRequests:
		return &s.Requests, true
	case BucketAssignments:
		return &s.Assignments, true
	case BucketEnquiries:
		return &s.Enquiries, true
	default:
		return nil, false
	}
}

// EncodeBuckets splits the snapshot into per-bucket JSON payloads.
func EncodeBuckets(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		if target, ok := s.bucketTarget(bucket); ok {
			data, err = json.Marshal(target)
		} else {
			data, err = json.Marshal(counters{NextTicketID: s.NextTicketID, Seq: s.Seq})
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket merges one bucket payload into the snapshot. Unknown buckets
// are ignored so older databases with extra rows still load.
func DecodeBucket(s *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if bucket == BucketCounters {
		var c counters
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		s.NextTicketID, s.Seq = c.NextTicketID, c.Seq
		return nil
	}
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
