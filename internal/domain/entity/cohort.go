package entity

import "sort"

// Built-in cohort names
const (
	CohortAll              = "all"
	CohortHasAnyRevenue    = "has_any_revenue"
	CohortActiveSubscriber = "active_subscriber"
	CohortLegacyMember     = "legacy_member"
	CohortLapsed           = "lapsed"
	CohortExpiring         = "expiring"

	// PlanCohortPrefix prefixes per-plan cohorts, e.g. "plan:PRO"
	PlanCohortPrefix = "plan:"
)

// Cohorts maps a cohort name to its members sorted by customer id.
// Every evaluated cohort is present, even when empty.
type Cohorts map[string][]CustomerID

// CohortMembersResponse lists one cohort of a snapshot. RunID and Members
// always come from the same snapshot.
type CohortMembersResponse struct {
	RunID   string       `json:"run_id"`
	Name    string       `json:"name"`
	Count   int          `json:"count"`
	Members []CustomerID `json:"members"`
}

// Names returns the cohort names in sorted order
func (c Cohorts) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether id belongs to the named cohort
func (c Cohorts) Contains(name string, id CustomerID) bool {
	members := c[name]
	i := sort.Search(len(members), func(i int) bool { return members[i] >= id })
	return i < len(members) && members[i] == id
}

// MembershipOf returns the sorted names of every cohort containing id
func (c Cohorts) MembershipOf(id CustomerID) []string {
	var names []string
	for _, name := range c.Names() {
		if c.Contains(name, id) {
			names = append(names, name)
		}
	}
	return names
}
