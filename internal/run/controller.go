// Package run owns the lifecycle of one protection run: error
// classification, the continue-or-stop decision, the outcome accumulator,
// and the exit-code mapping.
package run

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/glprotect/internal/gitlab"
)

// Category names the kind of protection a failed call was working on.
type Category string

const (
	CategoryBranch Category = "branch"
	CategoryTag    Category = "tag"
)

// ProtectionError wraps a failed protect/unprotect/list call with its
// category so a halting error maps to the right exit code.
type ProtectionError struct {
	Category Category
	Project  string
	Target   string
	Err      error
}

func (e *ProtectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s protection failed for %s: %v", e.Category, e.Project, e.Err)
	}
	return fmt.Sprintf("%s protection failed for %s %q: %v", e.Category, e.Project, e.Target, e.Err)
}

func (e *ProtectionError) Unwrap() error { return e.Err }

// State of a run.
type State int

const (
	Running State = iota
	HaltedOnError
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case HaltedOnError:
		return "halted_on_error"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome accumulates run totals. Owned by the Controller; read once at
// process end.
type Outcome struct {
	ProjectsProcessed int
	RulesApplied      int
	RulesSkipped      int
	Errors            int
}

// ExitCode reflects the aggregate outcome of a run that was not halted:
// 0 when no errors were recorded, 1 when any recoverable error occurred.
func (o Outcome) ExitCode() int {
	if o.Errors > 0 {
		return ExitError
	}
	return ExitOK
}

// Controller observes every API failure, classifies it, and decides
// whether the run continues. It is the only mutable state shared across
// projects; the run is sequential, so no locking.
type Controller struct {
	log         *slog.Logger
	stopOnError bool

	state   State
	outcome Outcome
}

func NewController(log *slog.Logger, stopOnError bool) *Controller {
	return &Controller{log: log, stopOnError: stopOnError, state: Running}
}

// Observe handles a failed protection call. A nil return means the error
// was logged and counted and the run continues; a non-nil return is the
// halting error the caller must propagate unchanged.
func (c *Controller) Observe(err error, category Category, project, target string) error {
	class := Classify(gitlab.StatusOf(err), c.stopOnError)
	c.outcome.Errors++

	attrs := []any{
		"class", class.String(),
		"project", project,
		"category", string(category),
		"target", target,
		"error", err,
	}
	switch class {
	case Conflict:
		c.log.Warn("protection conflict", attrs...)
		return nil
	case Recoverable:
		c.log.Error("protection failed", attrs...)
		return nil
	case AuthFailure:
		c.log.Error("authentication rejected, halting run", attrs...)
	case Fatal:
		c.log.Error("halting run on error", attrs...)
	}
	c.state = HaltedOnError
	return &ProtectionError{Category: category, Project: project, Target: target, Err: err}
}

// ObserveWalk handles a failed traversal call (group resolution, subgroup
// or project listing). Under continue-on-error only the affected subtree
// is abandoned; the returned halting error is not category-wrapped, so a
// fatal walk failure maps to the generic API exit code.
func (c *Controller) ObserveWalk(err error, groupPath string) error {
	class := Classify(gitlab.StatusOf(err), c.stopOnError)
	c.outcome.Errors++

	attrs := []any{
		"class", class.String(),
		"group", groupPath,
		"error", err,
	}
	switch class {
	case Conflict, Recoverable:
		c.log.Error("namespace walk error, skipping subtree", attrs...)
		return nil
	case AuthFailure:
		c.log.Error("authentication rejected, halting run", attrs...)
	case Fatal:
		c.log.Error("halting run on walk error", attrs...)
	}
	c.state = HaltedOnError
	return fmt.Errorf("namespace walk at %s: %w", groupPath, err)
}

// ProjectProcessed counts a project the reconciler finished with.
func (c *Controller) ProjectProcessed() { c.outcome.ProjectsProcessed++ }

// RuleApplied counts a created or replaced protection target.
func (c *Controller) RuleApplied() { c.outcome.RulesApplied++ }

// RuleSkipped counts an already-satisfied protection target.
func (c *Controller) RuleSkipped() { c.outcome.RulesSkipped++ }

// Complete marks normal exhaustion of the project sequence. A halted run
// stays halted.
func (c *Controller) Complete() {
	if c.state == Running {
		c.state = Completed
	}
}

func (c *Controller) State() State     { return c.state }
func (c *Controller) Outcome() Outcome { return c.outcome }
