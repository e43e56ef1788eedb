package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mohamedzouaghi/jira-scripts/internal/domain"
)

// ErrUnsupportedPolicy is returned by Satisfied for a policy outside the two
// supported values. Callers log it distinctly from a normal non-match so a
// misconfigured rule table is detectable.
var ErrUnsupportedPolicy = errors.New("unsupported rule policy")

// Backend is the issue-tracking collaborator: a source of parent issues and
// a sink for status transitions.
type Backend interface {
	// SearchIssues returns the in-scope parent issues of a project, each
	// pre-populated with its current status and its subtasks' statuses.
	SearchIssues(ctx context.Context, projectID string) ([]domain.Issue, error)
	// TransitionIssue moves an issue to the target status. Called at most
	// once per issue per run.
	TransitionIssue(ctx context.Context, key string, target domain.Status) error
}

// Engine evaluates the rule table against parent issues and applies at most
// one status transition per issue per run.
type Engine struct {
	Backend Backend
	Rules   []domain.Rule
	Log     *slog.Logger
	// DryRun suppresses backend mutations. Decisions and counts are
	// computed either way.
	DryRun bool
}

// New returns an Engine over the default rule table with dry-run enabled.
// Mutation requires explicitly switching DryRun off.
func New(backend Backend, log *slog.Logger) Engine {
	return Engine{
		Backend: backend,
		Rules:   domain.DefaultRules(),
		Log:     log,
		DryRun:  true,
	}
}

func (e Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Satisfied reports whether a policy over the accepted set holds for the
// given subtask statuses.
//
// PolicyAll is a universal quantifier: every status must be in the accepted
// set, so an empty status list satisfies it vacuously. PolicyAtLeastOne is
// existential: some status must be in the accepted set, so an empty list
// never satisfies it.
func Satisfied(statuses []domain.Status, policy domain.Policy, accepted domain.StatusSet) (bool, error) {
	switch policy {
	case domain.PolicyAll:
		for _, s := range statuses {
			if !accepted.Has(s) {
				return false, nil
			}
		}
		return true, nil
	case domain.PolicyAtLeastOne:
		for _, s := range statuses {
			if accepted.Has(s) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedPolicy, policy)
	}
}

// Decide walks the rule table against one issue and determines whether a
// status change is needed. It performs no I/O; applying the change is the
// runner's job.
//
// Protected and unrecognized statuses short-circuit before any rule is
// evaluated. The scan is first-match-wins: when several rules would be
// satisfied simultaneously, the one earliest in the table takes precedence.
func (e Engine) Decide(issue domain.Issue) domain.Evaluation {
	res := domain.Evaluation{
		Key:       issue.Key,
		OldStatus: issue.Status,
		NewStatus: issue.Status,
	}
	if !issue.Status.Recognized() {
		e.logger().Warn("skipping issue with unrecognized status",
			"key", issue.Key, "status", issue.Status)
		res.Skipped = true
		return res
	}
	for _, st := range issue.Subtasks {
		if !st.Status.Recognized() {
			e.logger().Warn("skipping issue with unrecognized subtask status",
				"key", issue.Key, "subtask", st.Key, "status", st.Status)
			res.Skipped = true
			return res
		}
	}
	if !issue.Status.Mutable() {
		return res
	}

	statuses := issue.SubtaskStatuses()
	for _, rule := range e.Rules {
		ok, err := Satisfied(statuses, rule.Policy, rule.Accepted)
		if err != nil {
			// Not a non-match: the rule itself is broken. Log and move on.
			e.logger().Warn("rule evaluation failed",
				"key", issue.Key, "target", rule.Target, "error", err)
			continue
		}
		if ok {
			res.Matched = true
			res.NewStatus = rule.Target
			res.ChangeNeeded = !issue.Status.Equals(rule.Target)
			break
		}
	}
	return res
}

// syncIssue runs one full decide-then-maybe-mutate cycle and writes the
// per-issue audit line. A failed transition is reported and the issue is
// left as unchanged; it never aborts the batch.
func (e Engine) syncIssue(ctx context.Context, issue domain.Issue) domain.Evaluation {
	res := e.Decide(issue)
	if res.ChangeNeeded && !e.DryRun {
		if err := e.Backend.TransitionIssue(ctx, issue.Key, res.NewStatus); err != nil {
			e.logger().Error("transition failed",
				"key", issue.Key, "target", res.NewStatus, "error", err)
		} else {
			res.Applied = true
		}
	}
	e.logger().Info("issue evaluated",
		"key", issue.Key,
		"type", issue.Type,
		"old_status", res.OldStatus,
		"new_status", res.NewStatus,
		"changed", res.Applied)
	return res
}

// ProjectSummary tallies one project's portion of a run.
type ProjectSummary struct {
	Project  string `json:"project"`
	Examined int    `json:"examined"`
	// Changed counts issues whose matched target differed from their
	// current status. Identical between a dry run and a real run over the
	// same data.
	Changed int `json:"changed"`
	// Applied counts transitions actually performed; always zero in
	// dry-run mode.
	Applied int `json:"applied"`
	// Failed counts transition calls that errored.
	Failed int `json:"failed"`
	// SearchFailed marks a project whose issue search errored; its issues
	// were not examined.
	SearchFailed bool `json:"search_failed,omitempty"`
}

// Run processes each project sequentially: fetch candidate issues, decide
// per issue, apply or suppress the transition, tally. A project whose
// search fails is skipped; the run always completes and returns a summary
// per project.
func (e Engine) Run(ctx context.Context, projects []string) []ProjectSummary {
	summaries := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		e.logger().Debug("starting project", "project", project)
		issues, err := e.Backend.SearchIssues(ctx, project)
		if err != nil {
			e.logger().Error("issue search failed", "project", project, "error", err)
			summaries = append(summaries, ProjectSummary{Project: project, SearchFailed: true})
			continue
		}
		sum := ProjectSummary{Project: project}
		for _, issue := range issues {
			sum.Examined++
			e.logger().Debug("examining issue", "key", issue.Key, "type", issue.Type)
			res := e.syncIssue(ctx, issue)
			if res.ChangeNeeded {
				sum.Changed++
			}
			if res.Applied {
				sum.Applied++
			}
			if res.ChangeNeeded && !e.DryRun && !res.Applied {
				sum.Failed++
			}
		}
		e.logger().Info("project done",
			"project", project,
			"examined", sum.Examined,
			"changed", sum.Changed,
			"applied", sum.Applied)
		summaries = append(summaries, sum)
	}
	return summaries
}
