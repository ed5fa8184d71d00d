// Package fingerprint defines the atomic unit of extracted repository
// information: a typed, hashed observation keyed by (kind, name, path).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint is one structured fact about a repository. Sha is a pure
// function of Data; two fingerprints with equal payloads always carry equal
// hashes. (Kind, Name, Path) is unique within one repository snapshot.
type Fingerprint struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	// Path scopes the fact to a sub-project inside the repository. Empty
	// means repository-root scope.
	Path string `json:"path,omitempty"`
	Sha  string `json:"sha"`
	Data any    `json:"data"`
}

// Hash computes the canonical content hash of a payload. The payload is
// normalized through a JSON round trip so that structurally equal values hash
// identically regardless of their Go representation (struct vs map, int vs
// float from decoding).
func Hash(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint payload: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", fmt.Errorf("normalize fingerprint payload: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Fill computes Sha from Data when it is not already set.
func (f *Fingerprint) Fill() error {
	if f.Sha != "" {
		return nil
	}
	sha, err := Hash(f.Data)
	if err != nil {
		return err
	}
	f.Sha = sha
	return nil
}

// ID returns the comparison key "kind::name", suffixed with "::path" for
// path-scoped facts.
func (f Fingerprint) ID() string {
	if f.Path != "" {
		return f.Kind + "::" + f.Name + "::" + f.Path
	}
	return f.Kind + "::" + f.Name
}
