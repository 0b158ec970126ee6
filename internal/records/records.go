// Package records loads and saves the housing registries as CSV files. It is
// the boundary between on-disk data and the in-memory snapshot consumed by the
// persistence stores.
package records

import (
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// File names read and written under the data directory.
const (
	PersonsFile     = "persons.csv"
	ProjectsFile    = "projects.csv"
	RequestsFile    = "requests.csv"
	AssignmentsFile = "assignments.csv"
	EnquiriesFile   = "enquiries.csv"
	MessagesFile    = "messages.csv"
	CountersFile    = "counters.csv"
)

// Options tunes Load.
type Options struct {
	// Strict fails on the first bad record instead of skipping it.
	Strict bool
	Logger *slog.Logger
	// HashCost is the bcrypt cost for plaintext passwords; zero selects
	// bcrypt.DefaultCost.
	HashCost int
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) hashCost() int {
	if o.HashCost == 0 {
		return bcrypt.DefaultCost
	}
	return o.HashCost
}

// RecordError locates a rejected record. Err unwraps to
// domain.ErrMalformedRecord or a domain.InvalidEnumError.
type RecordError struct {
	File string
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
