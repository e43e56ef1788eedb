package domain

import (
	"fmt"
	"strings"
)

// Status is a workflow status in its canonical uppercase form.
type Status string

// Recognized status vocabulary. Jira reports these with arbitrary casing;
// Normalize before comparing.
const (
	StatusToDo       Status = "TO DO"
	StatusBlocked    Status = "BLOCKED"
	StatusInProgress Status = "IN PROGRESS"
	StatusDone       Status = "DONE"
	StatusAccepted   Status = "ACCEPTED"
)

// Normalize converts a raw backend status name to canonical form.
func Normalize(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

var mutableStatuses = map[Status]bool{
	StatusToDo:       true,
	StatusBlocked:    true,
	StatusInProgress: true,
	StatusDone:       true,
}

var protectedStatuses = map[Status]bool{
	StatusAccepted: true,
}

// Recognized reports whether s belongs to the known vocabulary.
func (s Status) Recognized() bool {
	return mutableStatuses[s] || protectedStatuses[s]
}

// Mutable reports whether the engine may transition an issue away from s.
// Protected statuses (ACCEPTED) are never overwritten.
func (s Status) Mutable() bool {
	return mutableStatuses[s]
}

// Equals compares two statuses case-insensitively.
func (s Status) Equals(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// StatusSet is an unordered set of statuses.
type StatusSet map[Status]struct{}

// NewStatusSet builds a set from its members.
func NewStatusSet(members ...Status) StatusSet {
	set := make(StatusSet, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

// Has reports set membership.
func (ss StatusSet) Has(s Status) bool {
	_, ok := ss[s]
	return ok
}

// Policy is the aggregation rule applied to a parent's subtask statuses.
type Policy string

const (
	// PolicyAll is satisfied when every subtask status is in the accepted
	// set. Vacuously satisfied by an issue with no subtasks.
	PolicyAll Policy = "all"
	// PolicyAtLeastOne is satisfied when at least one subtask status is in
	// the accepted set. Never satisfied by an issue with no subtasks.
	PolicyAtLeastOne Policy = "at_least_one"
)

// Rule maps an aggregate condition over subtask statuses to a target status
// for the parent.
type Rule struct {
	Target   Status
	Policy   Policy
	Accepted StatusSet
}

// DefaultRules returns the rule table in priority order, highest first. The
// first satisfied rule wins; later rules are not evaluated.
//
// A parent with zero subtasks vacuously satisfies the first "all" rule and
// is driven to DONE — the table does not distinguish "no subtasks" from
// "all subtasks done". There is also no rule for a mix of TO DO plus a
// status that is neither blocked nor in progress; such parents are left
// unchanged.
func DefaultRules() []Rule {
	return []Rule{
		{Target: StatusDone, Policy: PolicyAll, Accepted: NewStatusSet(StatusDone, StatusAccepted)},
		{Target: StatusToDo, Policy: PolicyAll, Accepted: NewStatusSet(StatusToDo)},
		{Target: StatusBlocked, Policy: PolicyAtLeastOne, Accepted: NewStatusSet(StatusBlocked)},
		{Target: StatusInProgress, Policy: PolicyAtLeastOne, Accepted: NewStatusSet(StatusInProgress)},
	}
}

// ValidateRules checks a rule table for construction mistakes: empty
// accepted sets, unrecognized statuses, unsupported policies. Meant to run
// once at startup so a bad table fails fast instead of per evaluation.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("rule table is empty")
	}
	for i, r := range rules {
		if !r.Target.Recognized() {
			return fmt.Errorf("rule %d: unrecognized target status %q", i, r.Target)
		}
		if r.Policy != PolicyAll && r.Policy != PolicyAtLeastOne {
			return fmt.Errorf("rule %d: unsupported policy %q", i, r.Policy)
		}
		if len(r.Accepted) == 0 {
			return fmt.Errorf("rule %d: accepted status set is empty", i)
		}
		for s := range r.Accepted {
			if !s.Recognized() {
				return fmt.Errorf("rule %d: unrecognized accepted status %q", i, s)
			}
		}
	}
	return nil
}

// Subtask is a child work item. The engine reads its status and never
// mutates it.
type Subtask struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
}

// Issue is a level-two parent work item (story, bug, spike) with its
// subtasks as fetched from the backend at the start of a run.
type Issue struct {
	Key      string    `json:"key"`
	Type     string    `json:"type,omitempty"`
	Status   Status    `json:"status"`
	Subtasks []Subtask `json:"subtasks,omitempty"`
}

// SubtaskStatuses returns the statuses of the issue's subtasks. Order is
// irrelevant to evaluation; policies are set-based.
func (i Issue) SubtaskStatuses() []Status {
	out := make([]Status, 0, len(i.Subtasks))
	for _, st := range i.Subtasks {
		out = append(out, st.Status)
	}
	return out
}

// Evaluation is the per-issue outcome of one decide-then-maybe-mutate
// cycle. Transient: produced and consumed within a single run.
type Evaluation struct {
	Key       string `json:"key"`
	OldStatus Status `json:"old_status"`
	// NewStatus is the matched rule target, or OldStatus when no rule
	// matched or the issue was skipped.
	NewStatus Status `json:"new_status"`
	// Matched reports whether any rule was satisfied.
	Matched bool `json:"matched"`
	// ChangeNeeded reports whether the matched target differs from the
	// current status. Computed regardless of dry-run.
	ChangeNeeded bool `json:"change_needed"`
	// Applied reports whether the transition was sent to the backend and
	// succeeded.
	Applied bool `json:"applied"`
	// Skipped reports that the issue or one of its subtasks carried a
	// status outside the known vocabulary and was excluded from
	// evaluation.
	Skipped bool `json:"skipped,omitempty"`
}
