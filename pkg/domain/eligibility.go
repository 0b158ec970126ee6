package domain

// Age thresholds for unit eligibility.
const (
	MinMarriedAge = 21
	MinSingleAge  = 35
)

// CanSeeLargeUnit reports whether the person may see 3-room units.
func CanSeeLargeUnit(p Person) bool {
	return p.Age >= MinMarriedAge && p.MaritalStatus == MaritalMarried
}

// CanSeeSmallUnit reports whether the person qualifies for 2-room units as a single.
func CanSeeSmallUnit(p Person) bool {
	return p.Age >= MinSingleAge && p.MaritalStatus == MaritalSingle
}

// IsEligible reports whether the person may apply for the category. Married
// applicants who may see large units may also take a 2-room unit.
func IsEligible(p Person, category UnitCategory) bool {
	switch category {
	case UnitThreeRoom:
		return CanSeeLargeUnit(p)
	case UnitTwoRoom:
		return CanSeeSmallUnit(p) || CanSeeLargeUnit(p)
	default:
		return false
	}
}

// EligibleCategories lists the categories p may apply for, largest first.
func EligibleCategories(p Person) []UnitCategory {
	var out []UnitCategory
	for _, category := range UnitCategories {
		if IsEligible(p, category) {
			out = append(out, category)
		}
	}
	return out
}

// AvailableCategories lists the categories p may apply for that still have
// remaining units in project, largest first.
func AvailableCategories(p Person, project Project) []UnitCategory {
	var out []UnitCategory
	for _, category := range EligibleCategories(p) {
		if project.Remaining(category) > 0 {
			out = append(out, category)
		}
	}
	return out
}

// ChooseCategory resolves the category an application is made for. An
// explicit preference is honoured only when it is eligible and in stock; it is
// never silently swapped. Without a preference the largest eligible category
// with inventory is chosen.
func ChooseCategory(p Person, project Project, preferred *UnitCategory) (UnitCategory, error) {
	if preferred != nil {
		if IsEligible(p, *preferred) && project.Remaining(*preferred) > 0 {
			return *preferred, nil
		}
		return "", ErrCategoryUnavailable
	}
	available := AvailableCategories(p, project)
	if len(available) == 0 {
		return "", ErrCategoryUnavailable
	}
	return available[0], nil
}
