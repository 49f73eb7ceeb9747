package cli

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI escapes for human-facing summary lines. Cleared at startup when
// stdout is not a terminal or NO_COLOR is set, so piped output stays
// plain text.
var (
	red    = "\033[0;31m"
	green  = "\033[0;32m"
	cyan   = "\033[0;36m"
	yellow = "\033[1;33m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	reset  = "\033[0m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		red, green, cyan, yellow, bold, dim, reset = "", "", "", "", "", "", ""
	}
}
