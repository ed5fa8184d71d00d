// Package aspect models families of related fingerprints along with their
// extraction, consolidation, and rendering logic, plus the registry that
// resolves an aspect by kind.
package aspect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"driftgate/internal/diff"
	"driftgate/internal/fingerprint"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// RepoSnapshot is the in-memory view of one repository at one commit that
// extraction functions read from. Files maps repository-relative paths to
// content.
type RepoSnapshot struct {
	Workspace     id.Workspace
	Repo          id.RepoRef
	Branch        string
	DefaultBranch string
	CommitSha     string
	BranchCount   int
	Files         map[string]string
}

// ExtractFunc produces fingerprints from one repository snapshot. It must be
// deterministic for identical input content.
type ExtractFunc func(ctx context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error)

// ConsolidateFunc merges or derives fingerprints across all facts of one
// analysis run, e.g. counts and classifications.
type ConsolidateFunc func(ctx context.Context, all []fingerprint.Fingerprint) ([]fingerprint.Fingerprint, error)

// RenderFunc produces a human-readable value for one fingerprint, used in
// remediation request bodies.
type RenderFunc func(f fingerprint.Fingerprint) string

// DiffHandler reacts to the discrepancies found for one aspect in one
// repository. Handlers run sequentially in the order listed on the aspect.
type DiffHandler func(ctx context.Context, repo id.RepoRef, ds []diff.Discrepancy) error

// Aspect is one named family of fingerprints. Any of the function fields may
// be nil, meaning no-op. An empty DisplayName means "do not surface in UI",
// not "unnamed".
type Aspect struct {
	ID          string
	DisplayName string
	Extract     ExtractFunc
	Consolidate ConsolidateFunc
	Render      RenderFunc

	// Workflows run when fingerprints under this aspect differ from their
	// targets.
	Workflows []DiffHandler
	// Fallback runs instead of remediation when the repository has opted
	// out.
	Fallback []DiffHandler
}

// RenderValue renders a fingerprint's value, falling back to compact JSON of
// the payload when the aspect has no renderer.
func (a Aspect) RenderValue(f fingerprint.Fingerprint) string {
	if a.Render != nil {
		return a.Render(f)
	}
	raw, err := json.Marshal(f.Data)
	if err != nil {
		return fmt.Sprintf("%v", f.Data)
	}
	return string(raw)
}

// Label returns the name to use in human-facing output.
func (a Aspect) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.ID
}

var (
	// ErrUnknownAspect marks a fingerprint or target whose kind has no
	// registered aspect. Callers skip the record and continue; processing of
	// other facts never aborts.
	ErrUnknownAspect = dErrors.New(dErrors.CodeNotFound, "unknown aspect")
	// ErrDuplicateAspect marks a second registration under an already-used
	// id. This is fatal at startup, never a per-repository runtime error.
	ErrDuplicateAspect = dErrors.New(dErrors.CodeConflict, "aspect already registered")
)

// Registry holds the fixed set of registered aspects. Registration happens
// at startup; lookups afterwards are concurrent-safe.
type Registry struct {
	mu      sync.RWMutex
	aspects map[string]Aspect
	order   []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{aspects: make(map[string]Aspect)}
}

// Register adds an aspect. The id must be globally unique among all
// registered aspects.
func (r *Registry) Register(a Aspect) error {
	if a.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "aspect id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.aspects[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAspect, a.ID)
	}
	r.aspects[a.ID] = a
	r.order = append(r.order, a.ID)
	return nil
}

// Of resolves an aspect by kind.
func (r *Registry) Of(kind string) (Aspect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.aspects[kind]
	if !ok {
		return Aspect{}, fmt.Errorf("%w: %s", ErrUnknownAspect, kind)
	}
	return a, nil
}

// All returns the registered aspects in registration order. Diff handlers
// must run in this order so the shared report accumulates deterministically.
func (r *Registry) All() []Aspect {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Aspect, 0, len(r.order))
	for _, kind := range r.order {
		out = append(out, r.aspects[kind])
	}
	return out
}

// Kinds returns the registered aspect ids sorted ascending, for display.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}
