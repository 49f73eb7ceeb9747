package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/glprotect/internal/policy"
	"github.com/ppiankov/glprotect/internal/run"
)

var validateConfig string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "YAML policy file to validate (required)")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy file without touching GitLab",
	Long: "Loads and validates the policy file, then prints every rule with its\n" +
		"resolved numeric access levels. Performs no network calls. Exit code 0\n" +
		"for a valid policy, 10 when the file is missing, 11 on any parse or\n" +
		"validation failure.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runValidate())
	},
}

func runValidate() int {
	if validateConfig == "" {
		fmt.Fprintln(os.Stderr, "error: --config is required")
		return run.ExitUsage
	}

	doc, err := policy.Load(validateConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeForLoad(err)
	}

	printRules(os.Stdout, doc)
	fmt.Printf("%sOK%s: %s defines %d branch and %d tag rules\n",
		green, reset, validateConfig, len(doc.Branches), len(doc.Tags))
	return run.ExitOK
}

// printRules lists each rule with the numeric level codes that would be
// sent to the API. Tags show only the create level, which is fed from the
// rule's push level.
func printRules(w io.Writer, doc *policy.Document) {
	if len(doc.Branches) > 0 {
		fmt.Fprintf(w, "%sbranches%s\n", bold, reset)
		for _, r := range doc.Branches {
			fmt.Fprintf(w, "  %-32s merge=%s(%d) push=%s(%d)\n",
				r.Name,
				r.MergeAccessLevel, r.MergeAccessLevel.Code(),
				r.PushAccessLevel, r.PushAccessLevel.Code())
		}
	}
	if len(doc.Tags) > 0 {
		fmt.Fprintf(w, "%stags%s\n", bold, reset)
		for _, r := range doc.Tags {
			fmt.Fprintf(w, "  %-32s create=%s(%d)\n",
				r.Name, r.PushAccessLevel, r.PushAccessLevel.Code())
		}
	}
}
