package core

import "housingcore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the registry invariants.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSingleActiveRequestRule())
	engine.Register(NewUniqueActivePairRule())
	engine.Register(NewDisjointOfficerWindowsRule())
	engine.Register(NewUnitInventoryRule())
	engine.Register(NewOfficerSlotCapacityRule())
	return engine
}

// scope is the set of owner ids a rule must examine. A nil scope means the
// whole registry, which is what an evaluation without changes asks for.
type scope map[string]struct{}

func (s scope) covers(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// touched collects the owner ids of changed records of the given entity. Any
// change to an entity listed in widen forces a whole-registry scope.
func touched(changes []Change, entity EntityType, owner func(any) string, widen ...EntityType) scope {
	if changes == nil {
		return nil
	}
	out := scope{}
	for _, change := range changes {
		for _, w := range widen {
			if change.Entity == w {
				return nil
			}
		}
		if change.Entity != entity {
			continue
		}
		for _, record := range []any{change.Before, change.After} {
			if record == nil {
				continue
			}
			if id := owner(record); id != "" {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

func requestApplicant(record any) string {
	if r, ok := record.(HousingRequest); ok {
		return r.ApplicantID
	}
	return ""
}

func assignmentOfficer(record any) string {
	if a, ok := record.(AssignmentRequest); ok {
		return a.OfficerID
	}
	return ""
}

func projectKey(record any) string {
	if p, ok := record.(Project); ok {
		return p.Key()
	}
	return ""
}
