// Package walker enumerates every project reachable from a root namespace,
// breadth-first over subgroups, with exclusion pruning and dedup by
// project ID.
package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gobwas/glob"

	"github.com/ppiankov/glprotect/internal/gitlab"
	"github.com/ppiankov/glprotect/internal/run"
)

// ErrNamespaceNotFound means the root namespace did not resolve.
var ErrNamespaceNotFound = errors.New("namespace not found")

// Walker yields each project under a namespace exactly once. Traversal
// order is deterministic for a fixed remote: FIFO over groups, API order
// within each listing.
type Walker struct {
	client  gitlab.Client
	ctl     *run.Controller
	log     *slog.Logger
	exclude glob.Glob
	pattern string
}

// New compiles the exclusion pattern once; an empty pattern excludes
// nothing. The pattern uses the same glob dialect as rule names and is
// tested against both the bare name and the full path of every subgroup
// and project, so "sandbox" prunes any node named sandbox and "*-archive"
// prunes by suffix anywhere in the tree.
func New(client gitlab.Client, ctl *run.Controller, log *slog.Logger, exclude string) (*Walker, error) {
	w := &Walker{client: client, ctl: ctl, log: log, pattern: exclude}
	if exclude != "" {
		g, err := glob.Compile(exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", exclude, err)
		}
		w.exclude = g
	}
	return w, nil
}

func (w *Walker) excluded(name, fullPath string) bool {
	if w.exclude == nil {
		return false
	}
	return w.exclude.Match(name) || w.exclude.Match(fullPath)
}

// Walk resolves the root namespace and calls fn once per discovered
// project. An excluded subgroup's subtree is never visited. Listing
// failures route through the run controller: recoverable failures abandon
// the affected group node and the walk continues; a halting decision stops
// the walk with that error. An error from fn stops the walk immediately
// and is returned unchanged.
func (w *Walker) Walk(ctx context.Context, root string, fn func(gitlab.Project) error) error {
	rootGroup, err := w.client.GetGroup(ctx, root)
	if err != nil {
		if gitlab.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNamespaceNotFound, root)
		}
		return w.ctl.ObserveWalk(err, root)
	}

	queue := []gitlab.Group{*rootGroup}
	visited := map[int]bool{}
	seen := map[int]bool{}

	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]
		if visited[group.ID] {
			continue
		}
		visited[group.ID] = true

		w.log.Debug("visiting group", "group", group.FullPath)

		projects, err := w.client.ListGroupProjects(ctx, group.ID)
		if err != nil {
			if herr := w.ctl.ObserveWalk(err, group.FullPath); herr != nil {
				return herr
			}
			continue
		}
		for _, p := range projects {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			if w.excluded(p.Name, p.PathWithNamespace) {
				w.log.Info("excluding project", "project", p.PathWithNamespace, "pattern", w.pattern)
				continue
			}
			if err := fn(p); err != nil {
				return err
			}
		}

		subgroups, err := w.client.ListSubgroups(ctx, group.ID)
		if err != nil {
			if herr := w.ctl.ObserveWalk(err, group.FullPath); herr != nil {
				return herr
			}
			continue
		}
		for _, sg := range subgroups {
			if w.excluded(sg.Name, sg.FullPath) {
				w.log.Info("excluding subgroup", "group", sg.FullPath, "pattern", w.pattern)
				continue
			}
			queue = append(queue, sg)
		}
	}
	return nil
}
