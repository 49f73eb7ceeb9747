package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AccessLevel is a named GitLab access level as written in policy files.
type AccessLevel string

// Access level names accepted in policy files, lowest to highest.
const (
	NoAccess      AccessLevel = "no_access"
	MinimalAccess AccessLevel = "minimal_access"
	Guest         AccessLevel = "guest"
	Reporter      AccessLevel = "reporter"
	Developer     AccessLevel = "developer"
	Maintainer    AccessLevel = "maintainer"
	Owner         AccessLevel = "owner"
	Admin         AccessLevel = "admin"
)

// ErrInvalidAccessLevel is returned for level names outside the known set.
// Matching is case-sensitive: "Maintainer" is invalid, "maintainer" is not.
var ErrInvalidAccessLevel = errors.New("invalid access level")

// levelCodes maps level names to the numeric codes the GitLab API expects.
var levelCodes = map[AccessLevel]int{
	NoAccess:      0,
	MinimalAccess: 5,
	Guest:         10,
	Reporter:      20,
	Developer:     30,
	Maintainer:    40,
	Owner:         50,
	Admin:         60,
}

// Resolve maps a level name to its AccessLevel, rejecting unknown names.
// It is called at load time and again before any API call that embeds a
// level, so a bad name can never reach the wire.
func Resolve(name string) (AccessLevel, error) {
	lvl := AccessLevel(name)
	if _, ok := levelCodes[lvl]; !ok {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidAccessLevel, name, strings.Join(LevelNames(), ", "))
	}
	return lvl, nil
}

// Code returns the numeric GitLab API code for the level.
// Unknown levels map to 0 (no access); Resolve rejects them up front.
func (l AccessLevel) Code() int {
	return levelCodes[l]
}

// LevelNames lists the accepted level names in ascending privilege order.
func LevelNames() []string {
	names := make([]string, 0, len(levelCodes))
	for name := range levelCodes {
		names = append(names, string(name))
	}
	sort.Slice(names, func(i, j int) bool {
		return levelCodes[AccessLevel(names[i])] < levelCodes[AccessLevel(names[j])]
	})
	return names
}
