// Package optout stores per-organization and per-repository remediation
// opt-out preferences. Preferences gate downstream actions only; they never
// affect compliance computation.
package optout

import (
	"context"

	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// Preference is one opt-out record. Scope is either "owner" (organization
// wide) or "owner/repo" (single repository).
type Preference struct {
	Scope    string `json:"scope"`
	Disabled bool   `json:"disabled"`
}

// ErrNotFound keeps store-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "preference not found")

// Store is the preference contract.
type Store interface {
	Get(ctx context.Context, scope string) (*Preference, error)
	Put(ctx context.Context, pref Preference) error
	Delete(ctx context.Context, scope string) error
}

// Disabled resolves whether remediation is opted out for a repository. The
// repository-specific preference wins over the organization-wide one; absence
// of both means remediation stays enabled. Store failures propagate so the
// dispatcher can log and skip the affected group without guessing.
func Disabled(ctx context.Context, store Store, repo id.RepoRef) (bool, error) {
	if pref, err := store.Get(ctx, repo.RepoKey()); err == nil {
		return pref.Disabled, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, err
	}

	pref, err := store.Get(ctx, repo.OwnerKey())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return pref.Disabled, nil
}
