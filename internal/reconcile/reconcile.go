// Package reconcile converges a project's live protection state to a
// policy document. Branches are reconciled before tags; within a category
// each rule maps to exactly one protection target, and the reconciler
// decides per target whether to create, replace, or leave it unchanged.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/ppiankov/glprotect/internal/gitlab"
	"github.com/ppiankov/glprotect/internal/policy"
	"github.com/ppiankov/glprotect/internal/run"
)

// Action is the decision the reconciler reached for one protection target.
type Action string

const (
	ActionCreated   Action = "created"
	ActionReplaced  Action = "replaced"
	ActionUnchanged Action = "unchanged"
	ActionFailed    Action = "failed"
)

// Mutation is one protect or unprotect call issued against a project.
// Levels carry the rule's human-readable names; unprotect leaves them empty.
type Mutation struct {
	Project  string
	Category run.Category
	Target   string
	Rule     string
	Op       string
	Merge    string
	Push     string
}

// Mutation operations.
const (
	OpProtect   = "protect"
	OpUnprotect = "unprotect"
)

// Recorder receives every mutation that succeeded. Recording failures do
// not stop the run; the reconciler logs them and moves on.
type Recorder interface {
	Record(m Mutation) error
}

// TargetOutcome is the reconciler's verdict for one rule target.
type TargetOutcome struct {
	Category run.Category
	Rule     string
	Target   string
	Action   Action
	Err      error
}

// Result aggregates per-target outcomes for one project. A dry run
// produces the same shape as a live run, so callers cannot distinguish
// the reporting paths.
type Result struct {
	Project  string
	Outcomes []TargetOutcome

	Created   int
	Replaced  int
	Unchanged int
	Failed    int
}

func (r *Result) add(o TargetOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Action {
	case ActionCreated:
		r.Created++
	case ActionReplaced:
		r.Replaced++
	case ActionUnchanged:
		r.Unchanged++
	case ActionFailed:
		r.Failed++
	}
}

// levels is the numeric access-level pair a protection record carries.
// Tag records keep their create level in push; merge stays zero.
type levels struct {
	merge int
	push  int
}

// category wires the per-kind API calls into the shared reconcile loop.
type category struct {
	kind      run.Category
	list      func(ctx context.Context) (map[string]levels, []string, error)
	want      func(rule *policy.Rule) levels
	protect   func(ctx context.Context, rule *policy.Rule) error
	unprotect func(ctx context.Context, target string) error
}

// Reconciler applies a policy document to projects one at a time.
type Reconciler struct {
	client gitlab.Client
	ctl    *run.Controller
	rec    Recorder
	log    *slog.Logger
	dryRun bool
}

// New builds a Reconciler. rec may be nil to disable mutation recording.
// Under dryRun no mutating call is issued; protection state is still
// listed so the computed actions match what a live run would do.
func New(client gitlab.Client, ctl *run.Controller, rec Recorder, log *slog.Logger, dryRun bool) *Reconciler {
	return &Reconciler{client: client, ctl: ctl, rec: rec, log: log, dryRun: dryRun}
}

// Reconcile converges one project to the policy document, branch rules
// first, then tag rules. Failures on individual targets are captured in
// the Result; the returned error is non-nil only when the run controller
// decided the run must halt, and the Result is still valid up to that
// point.
func (r *Reconciler) Reconcile(ctx context.Context, project gitlab.Project, doc *policy.Document) (*Result, error) {
	res := &Result{Project: project.PathWithNamespace}

	if len(doc.Branches) > 0 {
		if err := r.reconcileCategory(ctx, project, doc.Branches, r.branchCategory(project), res); err != nil {
			return res, err
		}
	}
	if len(doc.Tags) > 0 {
		if err := r.reconcileCategory(ctx, project, doc.Tags, r.tagCategory(project), res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// reconcileCategory runs the shared decision loop for one rule category:
// fetch fresh state, then per rule decide create, replace, or skip. A rule
// name is itself the protection target: GitLab stores wildcard patterns
// verbatim, so no expansion against live branch or tag names happens here.
func (r *Reconciler) reconcileCategory(ctx context.Context, project gitlab.Project, rules []policy.Rule, cat category, res *Result) error {
	existing, names, err := cat.list(ctx)
	if err != nil {
		res.add(TargetOutcome{Category: cat.kind, Action: ActionFailed, Err: err})
		return r.ctl.Observe(err, cat.kind, project.PathWithNamespace, "")
	}

	// Existing records not literally named by any rule may still be
	// covered by a wildcard rule; surface that at debug so policy authors
	// can see which records a pattern already accounts for.
	r.logCovered(rules, names, cat.kind, project.PathWithNamespace)

	claimed := map[string]bool{}
	for i := range rules {
		rule := &rules[i]
		target := rule.Name
		if claimed[target] {
			r.log.Debug("target already claimed by an earlier rule",
				"project", project.PathWithNamespace,
				"category", string(cat.kind),
				"target", target)
			continue
		}
		claimed[target] = true

		cur, ok := existing[target]
		want := cat.want(rule)
		switch {
		case !ok:
			if err := r.apply(ctx, project, rule, cat, res, false); err != nil {
				return err
			}
		case cur == want:
			res.add(TargetOutcome{Category: cat.kind, Rule: rule.Name, Target: target, Action: ActionUnchanged})
			r.ctl.RuleSkipped()
			r.log.Debug("protection already satisfied",
				"project", project.PathWithNamespace,
				"category", string(cat.kind),
				"target", target)
		default:
			if err := r.apply(ctx, project, rule, cat, res, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply creates or replaces the protection for rule's target. Replace is
// unprotect-then-protect: the protection API has no partial update. When
// the unprotect fails the protect is skipped and the target fails; when
// the protect fails after a successful unprotect the target is left
// unprotected. That gap is inherent to the two-call sequence and is
// reported as a failure for this target only.
func (r *Reconciler) apply(ctx context.Context, project gitlab.Project, rule *policy.Rule, cat category, res *Result, replace bool) error {
	target := rule.Name
	action := ActionCreated
	if replace {
		action = ActionReplaced
	}

	if r.dryRun {
		res.add(TargetOutcome{Category: cat.kind, Rule: rule.Name, Target: target, Action: action})
		r.ctl.RuleApplied()
		r.log.Debug("dry-run: would apply protection",
			"project", project.PathWithNamespace,
			"category", string(cat.kind),
			"target", target,
			"action", string(action))
		return nil
	}

	if replace {
		if err := cat.unprotect(ctx, target); err != nil {
			res.add(TargetOutcome{Category: cat.kind, Rule: rule.Name, Target: target, Action: ActionFailed, Err: err})
			return r.ctl.Observe(err, cat.kind, project.PathWithNamespace, target)
		}
		r.record(project, cat.kind, rule, OpUnprotect)
	}

	if err := cat.protect(ctx, rule); err != nil {
		res.add(TargetOutcome{Category: cat.kind, Rule: rule.Name, Target: target, Action: ActionFailed, Err: err})
		return r.ctl.Observe(err, cat.kind, project.PathWithNamespace, target)
	}
	r.record(project, cat.kind, rule, OpProtect)

	res.add(TargetOutcome{Category: cat.kind, Rule: rule.Name, Target: target, Action: action})
	r.ctl.RuleApplied()
	r.log.Info("protection applied",
		"project", project.PathWithNamespace,
		"category", string(cat.kind),
		"target", target,
		"action", string(action))
	return nil
}

func (r *Reconciler) record(project gitlab.Project, kind run.Category, rule *policy.Rule, op string) {
	if r.rec == nil {
		return
	}
	m := Mutation{
		Project:  project.PathWithNamespace,
		Category: kind,
		Target:   rule.Name,
		Rule:     rule.Name,
		Op:       op,
	}
	if op == OpProtect {
		m.Merge = string(rule.MergeAccessLevel)
		m.Push = string(rule.PushAccessLevel)
	}
	if err := r.rec.Record(m); err != nil {
		r.log.Error("audit record failed", "project", m.Project, "target", m.Target, "error", err)
	}
}

// logCovered reports existing records that no rule names literally but a
// wildcard rule pattern covers. These are informational: the reconciler
// never rewrites a record it was not asked for by name.
func (r *Reconciler) logCovered(rules []policy.Rule, names []string, kind run.Category, project string) {
	byName := map[string]bool{}
	for i := range rules {
		byName[rules[i].Name] = true
	}
	for _, name := range names {
		if byName[name] {
			continue
		}
		if rule, ok := policy.Match(rules, name); ok {
			r.log.Debug("existing protection covered by wildcard rule",
				"project", project,
				"category", string(kind),
				"name", name,
				"rule", rule.Name)
		}
	}
}

func (r *Reconciler) branchCategory(project gitlab.Project) category {
	return category{
		kind: run.CategoryBranch,
		list: func(ctx context.Context) (map[string]levels, []string, error) {
			recs, err := r.client.ListProtectedBranches(ctx, project.ID)
			if err != nil {
				return nil, nil, err
			}
			state := make(map[string]levels, len(recs))
			names := make([]string, 0, len(recs))
			for _, rec := range recs {
				state[rec.Name] = levels{merge: rec.MergeAccessLevel, push: rec.PushAccessLevel}
				names = append(names, rec.Name)
			}
			return state, names, nil
		},
		want: func(rule *policy.Rule) levels {
			return levels{merge: rule.MergeAccessLevel.Code(), push: rule.PushAccessLevel.Code()}
		},
		protect: func(ctx context.Context, rule *policy.Rule) error {
			return r.client.ProtectBranch(ctx, project.ID, gitlab.BranchProtection{
				Name:             rule.Name,
				PushAccessLevel:  rule.PushAccessLevel.Code(),
				MergeAccessLevel: rule.MergeAccessLevel.Code(),
			})
		},
		unprotect: func(ctx context.Context, target string) error {
			return r.client.UnprotectBranch(ctx, project.ID, target)
		},
	}
}

// tagCategory maps a rule onto GitLab's protected-tag shape: tags take a
// single create access level, fed from the rule's push level.
func (r *Reconciler) tagCategory(project gitlab.Project) category {
	return category{
		kind: run.CategoryTag,
		list: func(ctx context.Context) (map[string]levels, []string, error) {
			recs, err := r.client.ListProtectedTags(ctx, project.ID)
			if err != nil {
				return nil, nil, err
			}
			state := make(map[string]levels, len(recs))
			names := make([]string, 0, len(recs))
			for _, rec := range recs {
				state[rec.Name] = levels{push: rec.CreateAccessLevel}
				names = append(names, rec.Name)
			}
			return state, names, nil
		},
		want: func(rule *policy.Rule) levels {
			return levels{push: rule.PushAccessLevel.Code()}
		},
		protect: func(ctx context.Context, rule *policy.Rule) error {
			return r.client.ProtectTag(ctx, project.ID, gitlab.TagProtection{
				Name:              rule.Name,
				CreateAccessLevel: rule.PushAccessLevel.Code(),
			})
		},
		unprotect: func(ctx context.Context, target string) error {
			return r.client.UnprotectTag(ctx, project.ID, target)
		},
	}
}
