// Package gitlab defines the narrow GitLab capability surface the walker
// and reconciler consume, plus the REST adapter and an in-memory fake.
package gitlab

import "context"

// Group is a namespace node: a group or subgroup discovered during a walk.
type Group struct {
	ID       int
	Name     string
	FullPath string
}

// Project is the reconciler's unit of work.
type Project struct {
	ID                int
	Name              string
	PathWithNamespace string
}

// ProtectedBranch is one live branch protection record. Levels are the
// GitLab numeric access-level codes.
type ProtectedBranch struct {
	Name             string
	PushAccessLevel  int
	MergeAccessLevel int
}

// ProtectedTag is one live tag protection record.
type ProtectedTag struct {
	Name              string
	CreateAccessLevel int
}

// BranchProtection is the request shape for protecting a branch.
type BranchProtection struct {
	Name             string
	PushAccessLevel  int
	MergeAccessLevel int
}

// TagProtection is the request shape for protecting a tag.
type TagProtection struct {
	Name              string
	CreateAccessLevel int
}

// Client is the capability interface over the GitLab API. The core never
// depends on the concrete REST adapter, so any conforming backend (real
// client, fake, fixture replay) satisfies it.
type Client interface {
	GetGroup(ctx context.Context, path string) (*Group, error)
	ListSubgroups(ctx context.Context, groupID int) ([]Group, error)
	ListGroupProjects(ctx context.Context, groupID int) ([]Project, error)

	ListProtectedBranches(ctx context.Context, projectID int) ([]ProtectedBranch, error)
	ProtectBranch(ctx context.Context, projectID int, p BranchProtection) error
	UnprotectBranch(ctx context.Context, projectID int, name string) error

	ListProtectedTags(ctx context.Context, projectID int) ([]ProtectedTag, error)
	ProtectTag(ctx context.Context, projectID int, p TagProtection) error
	UnprotectTag(ctx context.Context, projectID int, name string) error
}
