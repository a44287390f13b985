package domain

// AccessLevel is a rung on the fixed stakeholder privilege ladder.
type AccessLevel string

const (
	AccessBoard          AccessLevel = "BOARD"
	AccessCLevel         AccessLevel = "C_LEVEL"
	AccessSeniorVP       AccessLevel = "SENIOR_VP"
	AccessDepartmentHead AccessLevel = "DEPARTMENT_HEAD"
	AccessAnalyst        AccessLevel = "ANALYST"
)

// accessLevelOrder is the total order over levels, most privileged first.
var accessLevelOrder = []AccessLevel{
	AccessBoard,
	AccessCLevel,
	AccessSeniorVP,
	AccessDepartmentHead,
	AccessAnalyst,
}

// Rank returns the position of the level in the privilege order
// (0 = most privileged), or -1 for a level outside the ladder.
func (l AccessLevel) Rank() int {
	for i, level := range accessLevelOrder {
		if level == l {
			return i
		}
	}
	return -1
}

// StakeholderAccount identifies an actor and the scope of data it may see.
type StakeholderAccount struct {
	ID           string
	Email        string
	Title        string
	AccessLevel  AccessLevel
	DomainAccess []string
}

// HasDomain reports whether the account was explicitly granted the domain.
func (a StakeholderAccount) HasDomain(domain string) bool {
	for _, d := range a.DomainAccess {
		if d == domain {
			return true
		}
	}
	return false
}

// StakeholderGroup is a named recipient list resolved at delivery time.
type StakeholderGroup struct {
	Name    string
	Members []string
}
