// Package remediation turns one aspect's discrepancies into a change request
// payload for the external PR collaborator. The builder only describes the
// change; it never mutates repository files itself.
package remediation

import (
	"fmt"
	"strings"

	"driftgate/internal/aspect"
	"driftgate/internal/diff"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// Request is one batched change proposal: every discrepancy for one aspect
// in one repository/branch. FactIDs carry the (kind, name) pairs so the
// downstream apply operation can locate the matching file content.
type Request struct {
	Repo         id.RepoRef `json:"repo"`
	TargetBranch string     `json:"targetBranch"`
	AspectID     string     `json:"aspectId"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	FactIDs      []string   `json:"factIdentifiers"`
}

// blockSeparator keeps request bodies stable across runs so repeated
// submissions for the same drift update rather than duplicate.
const blockSeparator = "\n\n---\n\n"

const optOutInstructions = "To stop receiving these change requests, set the opt-out preference " +
	"for this repository or its organization via `PUT /v1/optout/{scope}` with `{\"disabled\": true}`."

// Builder renders remediation requests using each aspect's renderer.
type Builder struct {
	registry *aspect.Registry
}

// NewBuilder constructs a Builder over the registered aspects.
func NewBuilder(registry *aspect.Registry) *Builder {
	return &Builder{registry: registry}
}

// Build constructs the request for one aspect group. All discrepancies must
// belong to the given aspect; an empty group is a caller bug.
func (b *Builder) Build(repo id.RepoRef, targetBranch, aspectID string, ds []diff.Discrepancy) (Request, error) {
	if len(ds) == 0 {
		return Request{}, dErrors.New(dErrors.CodeValidation, "remediation request needs at least one discrepancy")
	}

	a, err := b.registry.Of(aspectID)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Repo:         repo,
		TargetBranch: targetBranch,
		AspectID:     aspectID,
		Title:        title(a, ds),
		FactIDs:      make([]string, 0, len(ds)),
	}

	blocks := make([]string, 0, len(ds)+1)
	for _, d := range ds {
		req.FactIDs = append(req.FactIDs, d.Target.Kind+"::"+d.Target.Name)
		blocks = append(blocks, describe(a, d))
	}
	blocks = append(blocks, optOutInstructions)
	req.Body = strings.Join(blocks, blockSeparator)

	return req, nil
}

func title(a aspect.Aspect, ds []diff.Discrepancy) string {
	if len(ds) == 1 {
		return fmt.Sprintf("apply target %s for %s", a.RenderValue(ds[0].Target.Fingerprint), ds[0].Name)
	}
	return fmt.Sprintf("apply %d %s policies", len(ds), a.Label())
}

func describe(a aspect.Aspect, d diff.Discrepancy) string {
	if d.Kind == diff.Eliminating {
		return fmt.Sprintf("**%s** (`%s`)\ncurrent: %s\ntarget: remove entirely",
			a.Label(), d.Name, a.RenderValue(d.Actual))
	}
	return fmt.Sprintf("**%s** (`%s`)\ncurrent: %s\ntarget: %s",
		a.Label(), d.Name, a.RenderValue(d.Actual), a.RenderValue(d.Target.Fingerprint))
}
