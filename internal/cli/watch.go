package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ppiankov/glprotect/internal/run"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	addApplyFlags(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Apply protection rules continuously on policy changes",
	Long: "Runs one apply pass, then watches the policy file and re-runs a full\n" +
		"pass after each change (500ms debounce). A rejected policy edit is\n" +
		"reported and watching continues; an authentication failure or a halt\n" +
		"under --stop-on-error stops watching with that pass's exit code.\n" +
		"Interrupt with Ctrl-C.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runWatch())
	},
}

func runWatch() int {
	opts, code := applyOptions()
	if code != run.ExitOK {
		return code
	}
	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return run.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first pass is strict: a broken policy or failed auth probe stops
	// here, before any watching starts.
	if code := runPass(ctx, opts, log); code != run.ExitOK && code != run.ExitError {
		return code
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create file watcher: %v\n", err)
		return run.ExitError
	}
	defer watcher.Close()

	if err := watcher.Add(opts.ConfigPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to watch %q: %v\n", opts.ConfigPath, err)
		return run.ExitError
	}
	log.Info("watching policy file", "path", opts.ConfigPath)

	return watchLoop(ctx, opts, log, watcher)
}

// watchLoop blocks until interrupted or a pass fails fatally. Rapid
// successive writes collapse into one pass: the debounce timer resets on
// every event and queues a pass 500ms after the last one.
func watchLoop(ctx context.Context, opts options, log *slog.Logger, watcher *fsnotify.Watcher) int {
	passes := make(chan struct{}, 1)
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info("watch stopped")
			return run.ExitOK

		case event, ok := <-watcher.Events:
			if !ok {
				return run.ExitError
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					select {
					case passes <- struct{}{}:
					default:
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return run.ExitError
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)

		case <-passes:
			log.Info("policy file changed, starting pass", "path", opts.ConfigPath)
			switch code := runPass(ctx, opts, log); code {
			case run.ExitOK, run.ExitError:
				// Recoverable outcome, keep watching.
			case run.ExitConfigNotFound, run.ExitConfigParse:
				log.Warn("policy rejected, waiting for next change", "path", opts.ConfigPath)
			default:
				return code
			}
		}
	}
}
