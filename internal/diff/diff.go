// Package diff compares a repository's extracted fingerprints against the
// resolved target view and produces discrepancies. The engine is pure over
// in-memory data; its only side effect is warning about payloads it had to
// exclude.
package diff

import (
	"log/slog"
	"sort"

	"driftgate/internal/fingerprint"
	"driftgate/internal/target"
)

// Kind distinguishes how a discrepancy was detected.
type Kind string

const (
	// Concrete means the fact exists but its content hash differs from the
	// target's.
	Concrete Kind = "concrete"
	// Eliminating means the fact exists at all while policy says it should
	// not.
	Eliminating Kind = "eliminating"
)

// Discrepancy is one detected mismatch between an actual fingerprint and its
// target. Discrepancies are ephemeral: computed fresh per comparison and
// owned by the report that aggregates them.
type Discrepancy struct {
	AspectID string                  `json:"aspectId"`
	Name     string                  `json:"name"`
	Path     string                  `json:"path,omitempty"`
	Actual   fingerprint.Fingerprint `json:"actual"`
	Target   target.Target           `json:"target"`
	Kind     Kind                    `json:"kind"`
}

// Engine computes discrepancies. It carries only a logger; comparison state
// lives entirely in arguments and return values.
type Engine struct {
	logger *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger used for excluded-payload warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New constructs a diff engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute compares facts against the target view. For each target in view
// order it finds facts with matching (kind, name) — and matching path when
// the target is path-scoped — and emits:
//
//   - nothing, when no matching fact exists and the target is concrete
//     (absence is not drift; the aspect never produced that fact);
//   - a Concrete discrepancy, when a matching fact's hash differs;
//   - an Eliminating discrepancy for every matching fact of an eliminating
//     target, regardless of hash.
//
// Output order is target-iteration order, ties broken by name then path, so
// repeated runs over the same input are byte-identical. A fact whose payload
// cannot be hashed is logged and excluded; it never aborts comparison of the
// remaining facts.
func (e *Engine) Compute(facts []fingerprint.Fingerprint, view target.View) []Discrepancy {
	usable := e.hashable(facts)

	var out []Discrepancy
	for _, t := range view.Targets() {
		if err := (&t.Fingerprint).Fill(); err != nil {
			e.warn("target payload failed to hash, skipping",
				"kind", t.Kind, "name", t.Name, "error", err)
			continue
		}

		matches := matching(usable, t)
		for _, f := range matches {
			switch {
			case t.Eliminate:
				out = append(out, Discrepancy{
					AspectID: t.Kind,
					Name:     f.Name,
					Path:     f.Path,
					Actual:   f,
					Target:   t,
					Kind:     Eliminating,
				})
			case f.Sha != t.Sha:
				out = append(out, Discrepancy{
					AspectID: t.Kind,
					Name:     f.Name,
					Path:     f.Path,
					Actual:   f,
					Target:   t,
					Kind:     Concrete,
				})
			}
		}
	}
	return out
}

// hashable fills hashes and drops facts whose payload cannot be encoded.
func (e *Engine) hashable(facts []fingerprint.Fingerprint) []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, 0, len(facts))
	for _, f := range facts {
		if err := (&f).Fill(); err != nil {
			e.warn("fingerprint payload failed to hash, excluding from comparison",
				"kind", f.Kind, "name", f.Name, "path", f.Path, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

// matching returns the facts the target applies to, in deterministic order.
// Comparison is per (kind, name, path) tuple: a path-scoped target only
// applies to facts under that sub-project path.
func matching(facts []fingerprint.Fingerprint, t target.Target) []fingerprint.Fingerprint {
	var out []fingerprint.Fingerprint
	for _, f := range facts {
		if f.Kind != t.Kind || f.Name != t.Name {
			continue
		}
		if t.Path != "" && f.Path != t.Path {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
