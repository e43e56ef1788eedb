package domain_test

import (
	"testing"

	"github.com/mohamedzouaghi/jira-scripts/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Status
	}{
		{"To Do", domain.StatusToDo},
		{"in progress", domain.StatusInProgress},
		{"DONE", domain.StatusDone},
		{"  Blocked  ", domain.StatusBlocked},
		{"accepted", domain.StatusAccepted},
		{"Won't Fix", domain.Status("WON'T FIX")},
	}
	for _, tt := range tests {
		if got := domain.Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status     domain.Status
		recognized bool
		mutable    bool
	}{
		{domain.StatusToDo, true, true},
		{domain.StatusBlocked, true, true},
		{domain.StatusInProgress, true, true},
		{domain.StatusDone, true, true},
		{domain.StatusAccepted, true, false},
		{domain.Status("WONTFIX"), false, false},
		{domain.Status(""), false, false},
	}
	for _, tt := range tests {
		if got := tt.status.Recognized(); got != tt.recognized {
			t.Errorf("%q.Recognized() = %v, want %v", tt.status, got, tt.recognized)
		}
		if got := tt.status.Mutable(); got != tt.mutable {
			t.Errorf("%q.Mutable() = %v, want %v", tt.status, got, tt.mutable)
		}
	}
}

func TestStatusEquals(t *testing.T) {
	if !domain.Status("Done").Equals(domain.StatusDone) {
		t.Errorf("expected case-insensitive equality")
	}
	if domain.StatusDone.Equals(domain.StatusToDo) {
		t.Errorf("distinct statuses must not be equal")
	}
}

func TestDefaultRulesPriorityOrder(t *testing.T) {
	rules := domain.DefaultRules()
	want := []domain.Status{
		domain.StatusDone,
		domain.StatusToDo,
		domain.StatusBlocked,
		domain.StatusInProgress,
	}
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, target := range want {
		if rules[i].Target != target {
			t.Errorf("rule %d target = %q, want %q", i, rules[i].Target, target)
		}
	}
	if rules[0].Policy != domain.PolicyAll || rules[1].Policy != domain.PolicyAll {
		t.Errorf("first two rules must use the all policy")
	}
	if rules[2].Policy != domain.PolicyAtLeastOne || rules[3].Policy != domain.PolicyAtLeastOne {
		t.Errorf("last two rules must use the at-least-one policy")
	}
	if !rules[0].Accepted.Has(domain.StatusAccepted) {
		t.Errorf("done rule must accept ACCEPTED subtasks")
	}
}

func TestValidateRules(t *testing.T) {
	if err := domain.ValidateRules(domain.DefaultRules()); err != nil {
		t.Fatalf("default table must validate: %v", err)
	}

	tests := []struct {
		name  string
		rules []domain.Rule
	}{
		{"empty table", nil},
		{"unsupported policy", []domain.Rule{
			{Target: domain.StatusDone, Policy: domain.Policy("majority"), Accepted: domain.NewStatusSet(domain.StatusDone)},
		}},
		{"empty accepted set", []domain.Rule{
			{Target: domain.StatusDone, Policy: domain.PolicyAll, Accepted: domain.NewStatusSet()},
		}},
		{"unrecognized target", []domain.Rule{
			{Target: domain.Status("ARCHIVED"), Policy: domain.PolicyAll, Accepted: domain.NewStatusSet(domain.StatusDone)},
		}},
		{"unrecognized accepted member", []domain.Rule{
			{Target: domain.StatusDone, Policy: domain.PolicyAll, Accepted: domain.NewStatusSet(domain.Status("ARCHIVED"))},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := domain.ValidateRules(tt.rules); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestSubtaskStatuses(t *testing.T) {
	issue := domain.Issue{
		Key: "PRJ-1",
		Subtasks: []domain.Subtask{
			{Key: "PRJ-2", Status: domain.StatusDone},
			{Key: "PRJ-3", Status: domain.StatusBlocked},
		},
	}
	got := issue.SubtaskStatuses()
	if len(got) != 2 || got[0] != domain.StatusDone || got[1] != domain.StatusBlocked {
		t.Errorf("SubtaskStatuses() = %v", got)
	}
	if n := len(domain.Issue{}.SubtaskStatuses()); n != 0 {
		t.Errorf("childless issue must yield no statuses, got %d", n)
	}
}
