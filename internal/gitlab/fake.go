package gitlab

import (
	"context"
	"fmt"
	"net/http"
)

// Fake is an in-memory Client for tests: a fixed group/project tree,
// mutable protection state, scripted failures, and an ordered log of every
// mutating call received.
//
// Like the real API, protecting an already-protected name returns 409 and
// unprotecting an unknown name returns 404, so the fake also checks the
// caller's unprotect-then-protect ordering.
type Fake struct {
	GroupsByPath map[string]*Group
	Subgroups    map[int][]Group
	Projects     map[int][]Project

	Branches map[int][]ProtectedBranch
	Tags     map[int][]ProtectedTag

	// Fail maps an operation key (e.g. "protect branch 1 main",
	// "list subgroups 10") to the HTTP status every matching call returns.
	Fail map[string]int

	// Mutations records every state-changing call in order, including
	// calls that then fail. Levels are appended to protect entries.
	Mutations []string
}

var _ Client = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		GroupsByPath: map[string]*Group{},
		Subgroups:    map[int][]Group{},
		Projects:     map[int][]Project{},
		Branches:     map[int][]ProtectedBranch{},
		Tags:         map[int][]ProtectedTag{},
		Fail:         map[string]int{},
	}
}

// AddGroup registers a group. A parent of 0 makes it a root, addressable
// only by path; otherwise it is listed as a subgroup of parent.
func (f *Fake) AddGroup(id int, name, fullPath string, parent int) {
	g := Group{ID: id, Name: name, FullPath: fullPath}
	f.GroupsByPath[fullPath] = &g
	if parent != 0 {
		f.Subgroups[parent] = append(f.Subgroups[parent], g)
	}
}

// AddProject registers a project as a direct member of group.
func (f *Fake) AddProject(group, id int, name, path string) {
	f.Projects[group] = append(f.Projects[group], Project{ID: id, Name: name, PathWithNamespace: path})
}

func (f *Fake) fail(key string) error {
	if status, ok := f.Fail[key]; ok {
		return &APIError{Op: key, Status: status, Message: "injected failure"}
	}
	return nil
}

func (f *Fake) GetGroup(_ context.Context, path string) (*Group, error) {
	if err := f.fail("get group " + path); err != nil {
		return nil, err
	}
	g, ok := f.GroupsByPath[path]
	if !ok {
		return nil, &APIError{Op: "get group", Status: http.StatusNotFound, Message: path + " not found"}
	}
	cp := *g
	return &cp, nil
}

func (f *Fake) ListSubgroups(_ context.Context, groupID int) ([]Group, error) {
	if err := f.fail(fmt.Sprintf("list subgroups %d", groupID)); err != nil {
		return nil, err
	}
	return append([]Group(nil), f.Subgroups[groupID]...), nil
}

func (f *Fake) ListGroupProjects(_ context.Context, groupID int) ([]Project, error) {
	if err := f.fail(fmt.Sprintf("list projects %d", groupID)); err != nil {
		return nil, err
	}
	return append([]Project(nil), f.Projects[groupID]...), nil
}

func (f *Fake) ListProtectedBranches(_ context.Context, projectID int) ([]ProtectedBranch, error) {
	if err := f.fail(fmt.Sprintf("list branches %d", projectID)); err != nil {
		return nil, err
	}
	return append([]ProtectedBranch(nil), f.Branches[projectID]...), nil
}

func (f *Fake) ProtectBranch(_ context.Context, projectID int, p BranchProtection) error {
	key := fmt.Sprintf("protect branch %d %s", projectID, p.Name)
	f.Mutations = append(f.Mutations, fmt.Sprintf("%s push=%d merge=%d", key, p.PushAccessLevel, p.MergeAccessLevel))
	if err := f.fail(key); err != nil {
		return err
	}
	for _, b := range f.Branches[projectID] {
		if b.Name == p.Name {
			return &APIError{Op: key, Status: http.StatusConflict, Message: "protected branch already exists"}
		}
	}
	f.Branches[projectID] = append(f.Branches[projectID], ProtectedBranch(p))
	return nil
}

func (f *Fake) UnprotectBranch(_ context.Context, projectID int, name string) error {
	key := fmt.Sprintf("unprotect branch %d %s", projectID, name)
	f.Mutations = append(f.Mutations, key)
	if err := f.fail(key); err != nil {
		return err
	}
	for i, b := range f.Branches[projectID] {
		if b.Name == name {
			f.Branches[projectID] = append(f.Branches[projectID][:i], f.Branches[projectID][i+1:]...)
			return nil
		}
	}
	return &APIError{Op: key, Status: http.StatusNotFound, Message: "protected branch not found"}
}

func (f *Fake) ListProtectedTags(_ context.Context, projectID int) ([]ProtectedTag, error) {
	if err := f.fail(fmt.Sprintf("list tags %d", projectID)); err != nil {
		return nil, err
	}
	return append([]ProtectedTag(nil), f.Tags[projectID]...), nil
}

func (f *Fake) ProtectTag(_ context.Context, projectID int, p TagProtection) error {
	key := fmt.Sprintf("protect tag %d %s", projectID, p.Name)
	f.Mutations = append(f.Mutations, fmt.Sprintf("%s create=%d", key, p.CreateAccessLevel))
	if err := f.fail(key); err != nil {
		return err
	}
	for _, tag := range f.Tags[projectID] {
		if tag.Name == p.Name {
			return &APIError{Op: key, Status: http.StatusConflict, Message: "protected tag already exists"}
		}
	}
	f.Tags[projectID] = append(f.Tags[projectID], ProtectedTag(p))
	return nil
}

func (f *Fake) UnprotectTag(_ context.Context, projectID int, name string) error {
	key := fmt.Sprintf("unprotect tag %d %s", projectID, name)
	f.Mutations = append(f.Mutations, key)
	if err := f.fail(key); err != nil {
		return err
	}
	for i, tag := range f.Tags[projectID] {
		if tag.Name == name {
			f.Tags[projectID] = append(f.Tags[projectID][:i], f.Tags[projectID][i+1:]...)
			return nil
		}
	}
	return &APIError{Op: key, Status: http.StatusNotFound, Message: "protected tag not found"}
}
