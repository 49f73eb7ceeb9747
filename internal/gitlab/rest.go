package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"
)

const perPage = 100

// REST adapts the official GitLab client to the Client port. Every failure
// is converted to *APIError so callers never handle transport types.
type REST struct {
	api *gl.Client
}

var _ Client = (*REST)(nil)

// New builds a REST adapter for the given base URL and token. The timeout
// bounds each request. Transport retries are disabled: a failed operation
// is recorded once and never re-attempted within a run.
func New(baseURL, token string, timeout time.Duration) (*REST, error) {
	api, err := gl.NewClient(token,
		gl.WithBaseURL(baseURL),
		gl.WithHTTPClient(&http.Client{Timeout: timeout}),
		gl.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build gitlab client: %w", err)
	}
	return &REST{api: api}, nil
}

// Verify is the startup authentication probe. A 401/403 here fails the run
// before any namespace traversal starts.
func (r *REST) Verify(ctx context.Context) error {
	if _, _, err := r.api.Users.CurrentUser(gl.WithContext(ctx)); err != nil {
		return wrap("verify token", err)
	}
	return nil
}

func (r *REST) GetGroup(ctx context.Context, path string) (*Group, error) {
	g, _, err := r.api.Groups.GetGroup(path, nil, gl.WithContext(ctx))
	if err != nil {
		return nil, wrap("get group", err)
	}
	return &Group{ID: g.ID, Name: g.Name, FullPath: g.FullPath}, nil
}

func (r *REST) ListSubgroups(ctx context.Context, groupID int) ([]Group, error) {
	opt := &gl.ListSubGroupsOptions{ListOptions: gl.ListOptions{PerPage: perPage}}
	var out []Group
	for {
		page, resp, err := r.api.Groups.ListSubGroups(groupID, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, wrap("list subgroups", err)
		}
		for _, g := range page {
			out = append(out, Group{ID: g.ID, Name: g.Name, FullPath: g.FullPath})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (r *REST) ListGroupProjects(ctx context.Context, groupID int) ([]Project, error) {
	opt := &gl.ListGroupProjectsOptions{ListOptions: gl.ListOptions{PerPage: perPage}}
	var out []Project
	for {
		page, resp, err := r.api.Groups.ListGroupProjects(groupID, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, wrap("list projects", err)
		}
		for _, p := range page {
			out = append(out, Project{ID: p.ID, Name: p.Name, PathWithNamespace: p.PathWithNamespace})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (r *REST) ListProtectedBranches(ctx context.Context, projectID int) ([]ProtectedBranch, error) {
	opt := &gl.ListProtectedBranchesOptions{ListOptions: gl.ListOptions{PerPage: perPage}}
	var out []ProtectedBranch
	for {
		page, resp, err := r.api.ProtectedBranches.ListProtectedBranches(projectID, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, wrap("list protected branches", err)
		}
		for _, b := range page {
			out = append(out, ProtectedBranch{
				Name:             b.Name,
				PushAccessLevel:  branchLevel(b.PushAccessLevels),
				MergeAccessLevel: branchLevel(b.MergeAccessLevels),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (r *REST) ProtectBranch(ctx context.Context, projectID int, p BranchProtection) error {
	opt := &gl.ProtectRepositoryBranchesOptions{
		Name:                      gl.Ptr(p.Name),
		PushAccessLevel:           gl.Ptr(gl.AccessLevelValue(p.PushAccessLevel)),
		MergeAccessLevel:          gl.Ptr(gl.AccessLevelValue(p.MergeAccessLevel)),
		AllowForcePush:            gl.Ptr(false),
		CodeOwnerApprovalRequired: gl.Ptr(false),
	}
	if _, _, err := r.api.ProtectedBranches.ProtectRepositoryBranches(projectID, opt, gl.WithContext(ctx)); err != nil {
		return wrap("protect branch", err)
	}
	return nil
}

func (r *REST) UnprotectBranch(ctx context.Context, projectID int, name string) error {
	if _, err := r.api.ProtectedBranches.UnprotectRepositoryBranches(projectID, name, gl.WithContext(ctx)); err != nil {
		return wrap("unprotect branch", err)
	}
	return nil
}

func (r *REST) ListProtectedTags(ctx context.Context, projectID int) ([]ProtectedTag, error) {
	opt := &gl.ListProtectedTagsOptions{PerPage: perPage}
	var out []ProtectedTag
	for {
		page, resp, err := r.api.ProtectedTags.ListProtectedTags(projectID, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, wrap("list protected tags", err)
		}
		for _, t := range page {
			out = append(out, ProtectedTag{
				Name:              t.Name,
				CreateAccessLevel: tagLevel(t.CreateAccessLevels),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (r *REST) ProtectTag(ctx context.Context, projectID int, p TagProtection) error {
	opt := &gl.ProtectRepositoryTagsOptions{
		Name:              gl.Ptr(p.Name),
		CreateAccessLevel: gl.Ptr(gl.AccessLevelValue(p.CreateAccessLevel)),
	}
	if _, _, err := r.api.ProtectedTags.ProtectRepositoryTags(projectID, opt, gl.WithContext(ctx)); err != nil {
		return wrap("protect tag", err)
	}
	return nil
}

func (r *REST) UnprotectTag(ctx context.Context, projectID int, name string) error {
	if _, err := r.api.ProtectedTags.UnprotectRepositoryTags(projectID, name, gl.WithContext(ctx)); err != nil {
		return wrap("unprotect tag", err)
	}
	return nil
}

// branchLevel picks the effective access level from a protection record.
// GitLab returns one role-based descriptor for rules created this way;
// user/group grants (Premium) are out of scope here.
func branchLevel(descs []*gl.BranchAccessDescription) int {
	if len(descs) == 0 {
		return 0
	}
	return int(descs[0].AccessLevel)
}

func tagLevel(descs []*gl.TagAccessDescription) int {
	if len(descs) == 0 {
		return 0
	}
	return int(descs[0].AccessLevel)
}

func wrap(op string, err error) error {
	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return &APIError{Op: op, Status: errResp.Response.StatusCode, Message: errResp.Message}
	}
	return &APIError{Op: op, Message: err.Error()}
}
