package domain

import (
	"fmt"
	"strings"
)

// Role tags a person with the capabilities they hold.
type Role string

// Supported roles.
const (
	RoleApplicant Role = "applicant"
	RoleOfficer   Role = "officer"
	RoleManager   Role = "manager"
)

// MaritalStatus drives unit eligibility.
type MaritalStatus string

// Supported marital statuses.
const (
	MaritalMarried MaritalStatus = "married"
	MaritalSingle  MaritalStatus = "single"
)

// UnitCategory identifies a flat type offered by a project.
type UnitCategory string

// Unit categories offered by every project.
const (
	UnitTwoRoom   UnitCategory = "2-room"
	UnitThreeRoom UnitCategory = "3-room"
)

// UnitCategories lists every category, largest first.
var UnitCategories = []UnitCategory{UnitThreeRoom, UnitTwoRoom}

// RequestStatus is the main status of a housing request.
type RequestStatus string

// Housing request statuses.
const (
	RequestPending      RequestStatus = "pending"
	RequestSuccessful   RequestStatus = "successful"
	RequestUnsuccessful RequestStatus = "unsuccessful"
	RequestBooked       RequestStatus = "booked"
)

// WithdrawalStatus is the withdrawal sub-status attached to a housing request.
type WithdrawalStatus string

// Withdrawal sub-statuses.
const (
	WithdrawalNotRequested WithdrawalStatus = "not_requested"
	WithdrawalRequested    WithdrawalStatus = "requested"
	WithdrawalApproved     WithdrawalStatus = "approved"
	WithdrawalRejected     WithdrawalStatus = "rejected"
)

// AssignmentStatus is the status of an officer assignment request.
type AssignmentStatus string

// Assignment statuses.
const (
	AssignmentApplied  AssignmentStatus = "applied"
	AssignmentRejected AssignmentStatus = "rejected"
	AssignmentAccepted AssignmentStatus = "accepted"
)

var (
	roleNames = map[string]Role{
		"applicant": RoleApplicant,
		"officer":   RoleOfficer,
		"manager":   RoleManager,
	}
	maritalNames = map[string]MaritalStatus{
		"married": MaritalMarried,
		"single":  MaritalSingle,
	}
	categoryNames = map[string]UnitCategory{
		"2-room":     UnitTwoRoom,
		"2room":      UnitTwoRoom,
		"two_room":   UnitTwoRoom,
		"3-room":     UnitThreeRoom,
		"3room":      UnitThreeRoom,
		"three_room": UnitThreeRoom,
	}
	requestStatusNames = map[string]RequestStatus{
		"pending":      RequestPending,
		"successful":   RequestSuccessful,
		"unsuccessful": RequestUnsuccessful,
		"booked":       RequestBooked,
	}
	withdrawalNames = map[string]WithdrawalStatus{
		"not_requested": WithdrawalNotRequested,
		"notrequested":  WithdrawalNotRequested,
		"requested":     WithdrawalRequested,
		"approved":      WithdrawalApproved,
		"rejected":      WithdrawalRejected,
	}
	assignmentStatusNames = map[string]AssignmentStatus{
		"applied":  AssignmentApplied,
		"rejected": AssignmentRejected,
		"accepted": AssignmentAccepted,
	}
)

func enumKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseEnum[T ~string](kind string, names map[string]T, s string) (T, error) {
	if v, ok := names[enumKey(s)]; ok {
		return v, nil
	}
	var zero T
	return zero, InvalidEnumError{Kind: kind, Value: s}
}

func unmarshalEnum[T ~string](kind string, names map[string]T, dst *T, text []byte) error {
	v, err := parseEnum(kind, names, string(text))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) { return parseEnum("role", roleNames, s) }

// ParseMaritalStatus parses a marital status name.
func ParseMaritalStatus(s string) (MaritalStatus, error) {
	return parseEnum("marital status", maritalNames, s)
}

// ParseUnitCategory parses a unit category name such as "2-Room".
func ParseUnitCategory(s string) (UnitCategory, error) {
	return parseEnum("unit category", categoryNames, s)
}

// ParseRequestStatus parses a housing request status name.
func ParseRequestStatus(s string) (RequestStatus, error) {
	return parseEnum("request status", requestStatusNames, s)
}

// ParseWithdrawalStatus parses a withdrawal status name.
func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	return parseEnum("withdrawal status", withdrawalNames, s)
}

// ParseAssignmentStatus parses an assignment status name.
func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	return parseEnum("assignment status", assignmentStatusNames, s)
}

// UnmarshalText rejects unknown role names.
func (r *Role) UnmarshalText(text []byte) error { return unmarshalEnum("role", roleNames, r, text) }

// UnmarshalText rejects unknown marital statuses.
func (m *MaritalStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum("marital status", maritalNames, m, text)
}

// UnmarshalText rejects unknown unit categories.
func (c *UnitCategory) UnmarshalText(text []byte) error {
	return unmarshalEnum("unit category", categoryNames, c, text)
}

// UnmarshalText rejects unknown request statuses.
func (s *RequestStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum("request status", requestStatusNames, s, text)
}

// UnmarshalText rejects unknown withdrawal statuses.
func (s *WithdrawalStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum("withdrawal status", withdrawalNames, s, text)
}

// UnmarshalText rejects unknown assignment statuses.
func (s *AssignmentStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum("assignment status", assignmentStatusNames, s, text)
}

func (r Role) String() string             { return string(r) }
func (m MaritalStatus) String() string    { return string(m) }
func (c UnitCategory) String() string     { return string(c) }
func (s RequestStatus) String() string    { return string(s) }
func (s WithdrawalStatus) String() string { return string(s) }
func (s AssignmentStatus) String() string { return string(s) }

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:    {RequestSuccessful, RequestUnsuccessful},
	RequestSuccessful: {RequestBooked, RequestUnsuccessful},
	RequestBooked:     {RequestUnsuccessful},
}

// CanTransitionTo reports whether next is a legal successor of s.
// Moving a successful or booked request to unsuccessful is only done by an
// approved withdrawal.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, candidate := range requestTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s. Both
// accepted and rejected are terminal.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	return s == AssignmentApplied && (next == AssignmentAccepted || next == AssignmentRejected)
}

// CanRequest reports whether a withdrawal may be requested from state s.
func (s WithdrawalStatus) CanRequest() bool {
	return s == WithdrawalNotRequested || s == WithdrawalRejected || s == ""
}

// InvalidEnumError reports an enum string that does not name a known value.
type InvalidEnumError struct {
	Kind  string
	Value string
}

func (e InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Kind, e.Value)
}

// Unwrap exposes ErrInvalidEnumValue to errors.Is.
func (e InvalidEnumError) Unwrap() error { return ErrInvalidEnumValue }
