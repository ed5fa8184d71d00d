package target

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"driftgate/internal/fingerprint"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// policyFile is the YAML shape of a seed policy document.
type policyFile struct {
	Workspace string        `yaml:"workspace"`
	Targets   []policyEntry `yaml:"targets"`
}

type policyEntry struct {
	Kind      string `yaml:"kind"`
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Repo      string `yaml:"repo"`
	Branch    string `yaml:"branch"`
	Data      any    `yaml:"data"`
	Eliminate bool   `yaml:"eliminate"`
}

// LoadPolicyFile seeds targets from a YAML policy document. Registration
// conflicts within one file (two entries for the same scope, kind, and name)
// are configuration errors and fail the load; this runs at startup, so a bad
// file is fatal rather than a per-repository runtime concern.
func LoadPolicyFile(ctx context.Context, store Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read policy file: %w", err)
	}

	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "malformed policy file")
	}
	if doc.Workspace == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "policy file missing workspace")
	}

	seen := make(map[string]bool, len(doc.Targets))
	for i, entry := range doc.Targets {
		if entry.Kind == "" || entry.Name == "" {
			return 0, dErrors.Newf(dErrors.CodeValidation, "policy entry %d missing kind or name", i)
		}
		key := entry.Repo + "|" + entry.Branch + "|" + entry.Kind + "::" + entry.Name
		if seen[key] {
			return 0, dErrors.Newf(dErrors.CodeConflict, "duplicate target %s/%s in policy file", entry.Kind, entry.Name)
		}
		seen[key] = true
	}

	count := 0
	for _, entry := range doc.Targets {
		t := Target{
			Fingerprint: fingerprint.Fingerprint{
				Kind: entry.Kind,
				Name: entry.Name,
				Path: entry.Path,
				Data: entry.Data,
			},
			Eliminate: entry.Eliminate,
		}
		if err := t.Fill(); err != nil {
			return count, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("policy target %s/%s has an unhashable payload", entry.Kind, entry.Name))
		}
		scope := Scope{Workspace: id.Workspace(doc.Workspace), Repo: entry.Repo, Branch: entry.Branch}
		if err := store.Set(ctx, scope, t); err != nil {
			return count, fmt.Errorf("seed target %s/%s: %w", entry.Kind, entry.Name, err)
		}
		count++
	}
	return count, nil
}
