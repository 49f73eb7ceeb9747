package run

import (
	"errors"

	"github.com/ppiankov/glprotect/internal/gitlab"
)

// Process exit codes.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitUsage            = 2
	ExitConfigNotFound   = 10
	ExitConfigParse      = 11
	ExitAPIError         = 20
	ExitTagProtection    = 21
	ExitBranchProtection = 22
	ExitAuth             = 30
)

// ExitCodeFor maps a halting error to its exit code. Authentication
// failures take precedence over the category of the call that hit them.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if gitlab.IsAuth(err) {
		return ExitAuth
	}
	var perr *ProtectionError
	if errors.As(err, &perr) {
		switch perr.Category {
		case CategoryTag:
			return ExitTagProtection
		case CategoryBranch:
			return ExitBranchProtection
		}
	}
	return ExitAPIError
}
