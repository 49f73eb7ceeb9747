package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/glprotect/internal/history"
	"github.com/ppiankov/glprotect/internal/policy"
	"github.com/ppiankov/glprotect/internal/reconcile"
	"github.com/ppiankov/glprotect/internal/run"
)

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name      string
		flag, env string
		want      string
		wantCode  int
	}{
		{"flag wins over env", "flag-token", "env-token", "flag-token", run.ExitOK},
		{"env fallback", "", "env-token", "env-token", run.ExitOK},
		{"neither is auth failure", "", "", "", run.ExitAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, code := resolveToken(tt.flag, tt.env)
			if got != tt.want || code != tt.wantCode {
				t.Errorf("resolveToken(%q, %q) = (%q, %d), want (%q, %d)",
					tt.flag, tt.env, got, code, tt.want, tt.wantCode)
			}
		})
	}
}

func TestApplyOptionsRequiredFlags(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "tok")

	applyNamespace = ""
	applyConfig = ""
	if _, code := applyOptions(); code != run.ExitUsage {
		t.Errorf("missing namespace and config: code = %d, want %d", code, run.ExitUsage)
	}

	applyNamespace = "acme"
	if _, code := applyOptions(); code != run.ExitUsage {
		t.Errorf("missing config: code = %d, want %d", code, run.ExitUsage)
	}

	applyConfig = "protection.yaml"
	applyToken = ""
	opts, code := applyOptions()
	if code != run.ExitOK {
		t.Fatalf("valid flags: code = %d, want 0", code)
	}
	if opts.Namespace != "acme" || opts.ConfigPath != "protection.yaml" || opts.Token != "tok" {
		t.Errorf("options not assembled: %+v", opts)
	}
}

func TestApplyOptionsMissingToken(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "")

	applyNamespace = "acme"
	applyConfig = "protection.yaml"
	applyToken = ""
	if _, code := applyOptions(); code != run.ExitAuth {
		t.Errorf("missing token: code = %d, want %d", code, run.ExitAuth)
	}
}

func TestExitCodeForLoad(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing file", fmt.Errorf("%w: protection.yaml", policy.ErrNotFound), run.ExitConfigNotFound},
		{"parse failure", fmt.Errorf("%w: bad yaml", policy.ErrParse), run.ExitConfigParse},
		{"invalid level", fmt.Errorf("%w: branches[0]: %w", policy.ErrParse, policy.ErrInvalidAccessLevel), run.ExitConfigParse},
		{"unclassified read failure", errors.New("permission denied"), run.ExitConfigParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeForLoad(tt.err); got != tt.want {
				t.Errorf("exitCodeForLoad() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintSummaryCounts(t *testing.T) {
	results := []*reconcile.Result{
		{Project: "acme/api", Created: 2, Unchanged: 1},
		{Project: "acme/web", Replaced: 1, Failed: 1},
	}
	out := run.Outcome{ProjectsProcessed: 2, RulesApplied: 3, RulesSkipped: 1, Errors: 1}

	var buf bytes.Buffer
	printSummary(&buf, options{Namespace: "acme"}, out, results)
	got := buf.String()

	for _, want := range []string{
		"apply summary",
		"namespace acme",
		"projects   2",
		"created    2",
		"replaced   1",
		"unchanged  1",
		"failed     1 (1 errors)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestPrintSummaryOmitsFailureLineOnCleanRun(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, options{Namespace: "acme"}, run.Outcome{ProjectsProcessed: 1}, nil)
	if strings.Contains(buf.String(), "failed") {
		t.Errorf("clean run should not print a failure line:\n%s", buf.String())
	}
}

func TestPrintPlanListsDivergentTargets(t *testing.T) {
	results := []*reconcile.Result{
		{
			Project: "acme/api",
			Outcomes: []reconcile.TargetOutcome{
				{Category: run.CategoryBranch, Rule: "main", Target: "main", Action: reconcile.ActionCreated},
				{Category: run.CategoryBranch, Rule: "develop", Target: "develop", Action: reconcile.ActionUnchanged},
				{Category: run.CategoryTag, Rule: "v*", Target: "v*", Action: reconcile.ActionReplaced},
			},
		},
	}

	var buf bytes.Buffer
	printPlan(&buf, results)
	got := buf.String()

	if !strings.Contains(got, "created") || !strings.Contains(got, "main") {
		t.Errorf("plan missing created branch target:\n%s", got)
	}
	if !strings.Contains(got, "replaced") || !strings.Contains(got, "v*") {
		t.Errorf("plan missing replaced tag target:\n%s", got)
	}
	if strings.Contains(got, "develop") {
		t.Errorf("plan should omit unchanged targets:\n%s", got)
	}
}

func TestPrintPlanEmpty(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, nil)
	if !strings.Contains(buf.String(), "nothing to do") {
		t.Errorf("empty plan should say nothing to do:\n%s", buf.String())
	}
}

func TestFormatRuns(t *testing.T) {
	runs := []history.Run{
		{
			ID:        "0d9171a6-9f44-4a3c-a2f1-1bf2f40e1e6a",
			StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Namespace: "acme",
			DryRun:    true,
			Projects:  3,
			Applied:   2,
			Skipped:   4,
		},
	}

	got := formatRuns(runs)
	for _, want := range []string{"2025-06-01 12:00:00", "0d9171a6", "acme", "dry"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "0d9171a6-") {
		t.Errorf("run id should be shortened:\n%s", got)
	}
}

func TestFormatRunsEmpty(t *testing.T) {
	if got := formatRuns(nil); !strings.Contains(got, "No runs recorded") {
		t.Errorf("unexpected empty table: %q", got)
	}
}
