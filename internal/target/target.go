// Package target models the organization's desired fingerprint values and
// the resolved view the diff engine compares against.
package target

import (
	"context"
	"sort"

	"driftgate/internal/fingerprint"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// Target is the desired value for one (kind, name). A concrete target carries
// the payload to converge to; an eliminating target says the fact should not
// exist at all.
type Target struct {
	fingerprint.Fingerprint
	Eliminate bool `json:"eliminate,omitempty"`
}

// Scope identifies one policy layer. Repo and Branch are optional; when set
// they form a repository override layer that wins over the workspace layer.
type Scope struct {
	Workspace id.Workspace
	Repo      string
	Branch    string
}

// Key returns the storage key for the scope layer.
func (s Scope) Key() string {
	k := s.Workspace.String()
	if s.Repo != "" {
		k += "|" + s.Repo
		if s.Branch != "" {
			k += "@" + s.Branch
		}
	}
	return k
}

// Store is the policy key-value contract. Implementations must treat targets
// as read-only from the diff engine's perspective; only explicit policy
// actions mutate them.
type Store interface {
	Get(ctx context.Context, scope Scope, kind, name string) (*Target, error)
	Set(ctx context.Context, scope Scope, t Target) error
	Delete(ctx context.Context, scope Scope, kind, name string) error
	List(ctx context.Context, scope Scope) ([]Target, error)
}

// View is the resolved, ordered set of targets applicable to one repository
// comparison. Order is (kind, name) ascending and stable across runs.
type View struct {
	targets []Target
}

// NewView builds a view from a flat target list, sorting into canonical
// order.
func NewView(targets []Target) View {
	sorted := append([]Target(nil), targets...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Name < sorted[j].Name
	})
	return View{targets: sorted}
}

// Targets returns the resolved targets in iteration order.
func (v View) Targets() []Target {
	return v.targets
}

// Len returns the number of applicable targets.
func (v View) Len() int {
	return len(v.targets)
}

// ForKind returns the sub-view of targets of one kind, preserving order.
func (v View) ForKind(kind string) View {
	var sub []Target
	for _, t := range v.targets {
		if t.Kind == kind {
			sub = append(sub, t)
		}
	}
	return View{targets: sub}
}

// Kinds returns the distinct target kinds in view order.
func (v View) Kinds() []string {
	var kinds []string
	seen := make(map[string]bool)
	for _, t := range v.targets {
		if !seen[t.Kind] {
			seen[t.Kind] = true
			kinds = append(kinds, t.Kind)
		}
	}
	return kinds
}

// Resolve merges the policy layers applicable to one repository comparison
// into a single view: workspace, then repository, then repository@branch,
// with later layers winning for matching (kind, name) pairs. Store failures
// surface as unavailable so the caller fails the whole repository run and
// lets the scheduler retry.
func Resolve(ctx context.Context, store Store, workspace id.Workspace, repo, branch string) (View, error) {
	layers := []Scope{{Workspace: workspace}}
	if repo != "" {
		layers = append(layers, Scope{Workspace: workspace, Repo: repo})
		if branch != "" {
			layers = append(layers, Scope{Workspace: workspace, Repo: repo, Branch: branch})
		}
	}

	merged := make(map[string]Target)
	for _, layer := range layers {
		targets, err := store.List(ctx, layer)
		if err != nil {
			return View{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "target store unavailable")
		}
		for _, t := range targets {
			merged[t.Kind+"::"+t.Name] = t
		}
	}

	flat := make([]Target, 0, len(merged))
	for _, t := range merged {
		flat = append(flat, t)
	}
	return NewView(flat), nil
}
