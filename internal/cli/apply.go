package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/glprotect/internal/audit"
	"github.com/ppiankov/glprotect/internal/gitlab"
	"github.com/ppiankov/glprotect/internal/history"
	"github.com/ppiankov/glprotect/internal/policy"
	"github.com/ppiankov/glprotect/internal/reconcile"
	"github.com/ppiankov/glprotect/internal/run"
	"github.com/ppiankov/glprotect/internal/walker"
)

var (
	applyURL         string
	applyToken       string
	applyNamespace   string
	applyConfig      string
	applyDryRun      bool
	applyExclude     string
	applyStopOnError bool
	applyTimeout     time.Duration
	applyAuditLog    string
	applyHistoryDB   string
)

func init() {
	rootCmd.AddCommand(applyCmd)
	addApplyFlags(applyCmd)
}

// addApplyFlags registers the reconciliation-run flag set. watch reuses
// it, so both commands accept identical options.
func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&applyURL, "url", "u", "https://gitlab.com", "Base URL of the GitLab instance")
	cmd.Flags().StringVarP(&applyToken, "token", "t", "", "GitLab API token (default: GITLAB_TOKEN env var)")
	cmd.Flags().StringVarP(&applyNamespace, "namespace", "n", "", "Namespace (group) to protect (required)")
	cmd.Flags().StringVarP(&applyConfig, "config", "c", "", "YAML policy file with protection rules (required)")
	cmd.Flags().BoolVarP(&applyDryRun, "dry-run", "d", false, "Show what would be done without making changes")
	cmd.Flags().StringVarP(&applyExclude, "exclude", "e", "", "Glob pattern excluding subgroups and projects by name or path")
	cmd.Flags().BoolVarP(&applyStopOnError, "stop-on-error", "s", false, "Stop on GitLab API errors (auth failures always stop, conflicts never do)")
	cmd.Flags().DurationVar(&applyTimeout, "timeout", 30*time.Second, "Request timeout for GitLab API calls")
	cmd.Flags().StringVar(&applyAuditLog, "audit-log", "", "Append each applied mutation to this hash-chained JSONL file")
	cmd.Flags().StringVar(&applyHistoryDB, "history-db", "", "Record the run outcome in this SQLite database")
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply protection rules to every project in a namespace",
	Long: "Loads the policy file, walks the namespace breadth-first over its\n" +
		"subgroups, and converges every project's protected branches and tags\n" +
		"to the policy. Rules already satisfied are skipped; divergent ones are\n" +
		"replaced. With --dry-run the same decisions are computed and printed\n" +
		"without issuing a single mutating call.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runApply(cmd.Context()))
	},
}

// options is one run's resolved configuration. Commands assemble it from
// flags; everything below the CLI receives it explicitly.
type options struct {
	URL         string
	Token       string
	Namespace   string
	ConfigPath  string
	DryRun      bool
	Exclude     string
	StopOnError bool
	Timeout     time.Duration
	AuditLog    string
	HistoryDB   string
}

// applyOptions validates the shared flag set and resolves the token. A
// non-zero exit code means the run must not start.
func applyOptions() (options, int) {
	if applyNamespace == "" || applyConfig == "" {
		fmt.Fprintln(os.Stderr, "error: --namespace and --config are required")
		return options{}, run.ExitUsage
	}
	token, code := resolveToken(applyToken, os.Getenv("GITLAB_TOKEN"))
	if code != run.ExitOK {
		return options{}, code
	}
	return options{
		URL:         applyURL,
		Token:       token,
		Namespace:   applyNamespace,
		ConfigPath:  applyConfig,
		DryRun:      applyDryRun,
		Exclude:     applyExclude,
		StopOnError: applyStopOnError,
		Timeout:     applyTimeout,
		AuditLog:    applyAuditLog,
		HistoryDB:   applyHistoryDB,
	}, run.ExitOK
}

// resolveToken picks the API token: explicit flag first, then the
// GITLAB_TOKEN environment variable.
func resolveToken(flag, env string) (string, int) {
	if flag != "" {
		fmt.Fprintln(os.Stderr, "warning: token provided via command line argument (consider using the GITLAB_TOKEN environment variable)")
		return flag, run.ExitOK
	}
	if env != "" {
		return env, run.ExitOK
	}
	fmt.Fprintln(os.Stderr, "error: gitlab token not provided, use --token or set GITLAB_TOKEN")
	return "", run.ExitAuth
}

func runApply(ctx context.Context) int {
	opts, code := applyOptions()
	if code != run.ExitOK {
		return code
	}
	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return run.ExitUsage
	}
	return runPass(ctx, opts, log)
}

// runPass executes one complete reconciliation pass and returns its exit
// code. watch re-invokes it after every accepted policy reload.
func runPass(ctx context.Context, opts options, log *slog.Logger) int {
	started := time.Now().UTC()
	runID := uuid.NewString()

	doc, err := policy.Load(opts.ConfigPath)
	if err != nil {
		log.Error("policy rejected", "path", opts.ConfigPath, "error", err)
		return exitCodeForLoad(err)
	}

	client, err := gitlab.New(opts.URL, opts.Token, opts.Timeout)
	if err != nil {
		log.Error("gitlab client init failed", "url", opts.URL, "error", err)
		return run.ExitAPIError
	}
	log.Info("gitlab API initialized", "url", opts.URL)

	if err := client.Verify(ctx); err != nil {
		if gitlab.IsAuth(err) {
			log.Error("authentication failed", "error", err)
			return run.ExitAuth
		}
		log.Error("authentication probe failed", "error", err)
		return run.ExitAPIError
	}

	ctl := run.NewController(log, opts.StopOnError)
	w, err := walker.New(client, ctl, log, opts.Exclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return run.ExitUsage
	}

	var rec reconcile.Recorder
	if opts.AuditLog != "" && !opts.DryRun {
		alog, err := audit.Open(opts.AuditLog)
		if err != nil {
			log.Error("audit log unavailable", "path", opts.AuditLog, "error", err)
			return run.ExitError
		}
		defer alog.Close()
		rec = &auditRecorder{log: alog, runID: runID}
	}

	var store *history.Store
	if opts.HistoryDB != "" {
		store, err = history.Open(opts.HistoryDB)
		if err != nil {
			log.Error("history store unavailable", "path", opts.HistoryDB, "error", err)
			return run.ExitError
		}
		defer store.Close()
	}

	rc := reconcile.New(client, ctl, rec, log, opts.DryRun)

	var results []*reconcile.Result
	walkErr := w.Walk(ctx, opts.Namespace, func(p gitlab.Project) error {
		log.Info("processing", "project", p.PathWithNamespace)
		res, err := rc.Reconcile(ctx, p, doc)
		if res != nil {
			results = append(results, res)
		}
		ctl.ProjectProcessed()
		return err
	})

	exit := run.ExitOK
	if walkErr != nil {
		log.Error("run halted", "error", walkErr)
		exit = run.ExitCodeFor(walkErr)
	} else {
		ctl.Complete()
		exit = ctl.Outcome().ExitCode()
		if opts.DryRun {
			log.Info("dry-run completed", "projects", ctl.Outcome().ProjectsProcessed)
		} else {
			log.Info("run completed", "state", ctl.State().String())
		}
	}

	printSummary(os.Stdout, opts, ctl.Outcome(), results)

	if store != nil {
		recordHistory(ctx, log, store, opts, runID, started, ctl.Outcome(), exit)
	}
	return exit
}

// exitCodeForLoad maps policy load failures: a missing file is its own
// code, everything else is a parse error.
func exitCodeForLoad(err error) int {
	if errors.Is(err, policy.ErrNotFound) {
		return run.ExitConfigNotFound
	}
	return run.ExitConfigParse
}

// auditRecorder adapts the hash-chained audit log to the reconciler's
// Recorder port, stamping each entry with this run's ID.
type auditRecorder struct {
	log   *audit.Log
	runID string
}

func (a *auditRecorder) Record(m reconcile.Mutation) error {
	return a.log.Record(audit.Entry{
		RunID:    a.runID,
		Project:  m.Project,
		Category: string(m.Category),
		Target:   m.Target,
		Rule:     m.Rule,
		Op:       m.Op,
		Merge:    m.Merge,
		Push:     m.Push,
	})
}

// recordHistory writes the completed run's row. The run already finished;
// a failed write is logged and does not change the exit code.
func recordHistory(ctx context.Context, log *slog.Logger, store *history.Store, opts options, runID string, started time.Time, out run.Outcome, exit int) {
	err := store.Record(ctx, history.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Namespace:  opts.Namespace,
		DryRun:     opts.DryRun,
		Projects:   out.ProjectsProcessed,
		Applied:    out.RulesApplied,
		Skipped:    out.RulesSkipped,
		Errors:     out.Errors,
		ExitCode:   exit,
	})
	if err != nil {
		log.Error("history record failed", "error", err)
	}
}

// printSummary writes the human-facing run report: the planned-actions
// table for dry runs, then per-action counts for both modes.
func printSummary(w io.Writer, opts options, out run.Outcome, results []*reconcile.Result) {
	var created, replaced, unchanged, failed int
	for _, r := range results {
		created += r.Created
		replaced += r.Replaced
		unchanged += r.Unchanged
		failed += r.Failed
	}

	if opts.DryRun {
		printPlan(w, results)
	}

	mode := "apply"
	if opts.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(w, "\n%s%s summary%s %s(namespace %s)%s\n", bold, mode, reset, dim, opts.Namespace, reset)
	fmt.Fprintf(w, "  projects   %d\n", out.ProjectsProcessed)
	fmt.Fprintf(w, "  %screated    %d%s\n", green, created, reset)
	fmt.Fprintf(w, "  %sreplaced   %d%s\n", yellow, replaced, reset)
	fmt.Fprintf(w, "  %sunchanged  %d%s\n", dim, unchanged, reset)
	if failed > 0 || out.Errors > 0 {
		fmt.Fprintf(w, "  %sfailed     %d (%d errors)%s\n", red, failed, out.Errors, reset)
	}
}

// printPlan lists every mutation a live run would issue, one line per
// divergent target. Unchanged targets are omitted.
func printPlan(w io.Writer, results []*reconcile.Result) {
	fmt.Fprintf(w, "%splanned actions%s\n", cyan, reset)
	n := 0
	for _, r := range results {
		for _, o := range r.Outcomes {
			if o.Action == reconcile.ActionUnchanged {
				continue
			}
			n++
			fmt.Fprintf(w, "  %-9s %-6s %-40s %s\n", o.Action, o.Category, r.Project, o.Target)
		}
	}
	if n == 0 {
		fmt.Fprintf(w, "  %snothing to do, live state matches the policy%s\n", dim, reset)
	}
}
