// Package domain holds identifier primitives shared across the service.
// Keeping them here avoids import cycles between stores, services, and
// transport.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Workspace identifies the organization that owns targets and preferences.
type Workspace string

func (w Workspace) String() string {
	return string(w)
}

// IsNil reports whether the workspace is unset.
func (w Workspace) IsNil() bool {
	return w == ""
}

// RepoRef identifies one repository within a workspace.
type RepoRef struct {
	Owner string
	Name  string
}

// ParseRepoRef parses an "owner/name" slug.
func ParseRepoRef(slug string) (RepoRef, error) {
	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" {
		return RepoRef{}, fmt.Errorf("invalid repository slug: %q", slug)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// Slug returns the canonical "owner/name" form.
func (r RepoRef) Slug() string {
	return r.Owner + "/" + r.Name
}

// IsNil reports whether the reference is unset.
func (r RepoRef) IsNil() bool {
	return r.Owner == "" || r.Name == ""
}

// MarshalJSON encodes the reference as its "owner/name" slug; a nil reference
// encodes as the empty string.
func (r RepoRef) MarshalJSON() ([]byte, error) {
	if r.IsNil() {
		return json.Marshal("")
	}
	return json.Marshal(r.Slug())
}

// UnmarshalJSON decodes an "owner/name" slug.
func (r *RepoRef) UnmarshalJSON(data []byte) error {
	var slug string
	if err := json.Unmarshal(data, &slug); err != nil {
		return err
	}
	if slug == "" {
		*r = RepoRef{}
		return nil
	}
	parsed, err := ParseRepoRef(slug)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// OwnerKey returns the organization-wide preference key.
func (r RepoRef) OwnerKey() string {
	return r.Owner
}

// RepoKey returns the repository-specific preference key.
func (r RepoRef) RepoKey() string {
	return r.Slug()
}
