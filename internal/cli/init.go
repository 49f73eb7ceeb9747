package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/glprotect/internal/policy"
)

var (
	initOutput string
	initForce  bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "protection.yaml", "Where to write the starter policy")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a commented starter policy file",
	Long: "Writes a starter policy with one rule per section and a reference of\n" +
		"the valid access level names. Edit it, then check it with validate.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	wrote, err := writeIfMissing(initOutput, policy.SampleYAML())
	if err != nil {
		return err
	}
	if !wrote {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
	}
	fmt.Printf("Created %s\n", initOutput)
	return nil
}

// writeIfMissing writes content to path unless the file already exists
// and --force is unset. Reports whether it wrote.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
