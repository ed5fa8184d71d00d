package aspect

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"driftgate/internal/fingerprint"
)

// RegisterBuiltins installs the standard aspect set. Extraction here is the
// boundary implementation of the extraction collaborator contract: each
// function is a deterministic producer over snapshot content and returns
// typed fingerprints for the decision core to compare.
func RegisterBuiltins(r *Registry) error {
	builtins := []Aspect{
		{
			ID:          "typescript-version",
			DisplayName: "TypeScript Version",
			Extract:     extractTypeScriptVersion,
			Render:      renderVersionList,
		},
		{
			ID:          "node-version",
			DisplayName: "Node.js Version",
			Extract:     extractNodeVersion,
			Render:      renderVersionList,
		},
		{
			ID:          "maven-direct-dep",
			DisplayName: "Maven Direct Dependency",
			Extract:     extractMavenDirectDeps,
			Render:      renderMavenDep,
		},
		{
			ID:          "docker-base-image",
			DisplayName: "Docker Base Image",
			Extract:     extractDockerBaseImages,
			Render:      renderDockerImage,
		},
		{
			ID:          "docker-expose-ports",
			DisplayName: "Docker Exposed Ports",
			Extract:     extractDockerExposePorts,
			Render:      renderVersionList,
		},
		{
			ID:          "ci-provider",
			DisplayName: "CI Provider",
			Extract:     extractCIProvider,
			Render:      renderVersionList,
		},
		{
			ID:          "branch-count",
			DisplayName: "Branch Count",
			Extract:     extractBranchCount,
			Render: func(f fingerprint.Fingerprint) string {
				if m, ok := f.Data.(map[string]any); ok {
					return fmt.Sprintf("%v branches", m["count"])
				}
				if m, ok := f.Data.(map[string]int); ok {
					return fmt.Sprintf("%d branches", m["count"])
				}
				return fmt.Sprintf("%v", f.Data)
			},
		},
		{
			ID:          "license",
			DisplayName: "License",
			Extract:     extractLicense,
			Render: func(f fingerprint.Fingerprint) string {
				if s, ok := f.Data.(string); ok {
					return s
				}
				return fmt.Sprintf("%v", f.Data)
			},
		},
		{
			// Derived census of extracted fact kinds. No display name: the
			// census feeds reporting queries, not the UI.
			ID:          "fingerprint-census",
			Consolidate: consolidateCensus,
		},
	}

	for _, a := range builtins {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

func extractTypeScriptVersion(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	raw, ok := snap.Files["package.json"]
	if !ok {
		return nil, nil
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	version := pkg.Dependencies["typescript"]
	if version == "" {
		version = pkg.DevDependencies["typescript"]
	}
	if version == "" {
		return nil, nil
	}
	return []fingerprint.Fingerprint{{
		Kind: "typescript-version",
		Name: "typescript-version",
		Data: []string{strings.TrimLeft(version, "^~")},
	}}, nil
}

func extractNodeVersion(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	if nvmrc, ok := snap.Files[".nvmrc"]; ok {
		v := strings.TrimSpace(nvmrc)
		if v != "" {
			return []fingerprint.Fingerprint{{
				Kind: "node-version",
				Name: "node-version",
				Data: []string{strings.TrimPrefix(v, "v")},
			}}, nil
		}
	}
	raw, ok := snap.Files["package.json"]
	if !ok {
		return nil, nil
	}
	var pkg struct {
		Engines map[string]string `json:"engines"`
	}
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	if node := pkg.Engines["node"]; node != "" {
		return []fingerprint.Fingerprint{{
			Kind: "node-version",
			Name: "node-version",
			Data: []string{node},
		}}, nil
	}
	return nil, nil
}

type pomProject struct {
	XMLName      xml.Name `xml:"project"`
	Dependencies []pomDep `xml:"dependencies>dependency"`
}

type pomDep struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// extractMavenDirectDeps emits one fingerprint per declared dependency, using
// the directory of each pom.xml as the virtual-project path.
func extractMavenDirectDeps(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	var out []fingerprint.Fingerprint
	for file, raw := range snap.Files {
		if path.Base(file) != "pom.xml" {
			continue
		}
		var pom pomProject
		if err := xml.Unmarshal([]byte(raw), &pom); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		subPath := path.Dir(file)
		if subPath == "." {
			subPath = ""
		}
		for _, dep := range pom.Dependencies {
			if dep.GroupID == "" || dep.ArtifactID == "" {
				continue
			}
			out = append(out, fingerprint.Fingerprint{
				Kind: "maven-direct-dep",
				Name: dep.GroupID + ":" + dep.ArtifactID,
				Path: subPath,
				Data: map[string]string{
					"group":    dep.GroupID,
					"artifact": dep.ArtifactID,
					"version":  dep.Version,
				},
			})
		}
	}
	sortFingerprints(out)
	return out, nil
}

func extractDockerBaseImages(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	var out []fingerprint.Fingerprint
	for file, raw := range snap.Files {
		if path.Base(file) != "Dockerfile" {
			continue
		}
		subPath := path.Dir(file)
		if subPath == "." {
			subPath = ""
		}
		for _, line := range strings.Split(raw, "\n") {
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
				continue
			}
			image, tag := fields[1], "latest"
			if img, t, ok := strings.Cut(fields[1], ":"); ok {
				image, tag = img, t
			}
			out = append(out, fingerprint.Fingerprint{
				Kind: "docker-base-image",
				Name: "docker-base-image",
				Path: subPath,
				Data: map[string]string{"image": image, "tag": tag},
			})
			// Only the first FROM counts; later stages inherit policy from it.
			break
		}
	}
	sortFingerprints(out)
	return out, nil
}

func extractDockerExposePorts(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	var out []fingerprint.Fingerprint
	for file, raw := range snap.Files {
		if path.Base(file) != "Dockerfile" {
			continue
		}
		subPath := path.Dir(file)
		if subPath == "." {
			subPath = ""
		}
		var ports []string
		for _, line := range strings.Split(raw, "\n") {
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) < 2 || !strings.EqualFold(fields[0], "EXPOSE") {
				continue
			}
			ports = append(ports, fields[1:]...)
		}
		if len(ports) == 0 {
			continue
		}
		sort.Strings(ports)
		out = append(out, fingerprint.Fingerprint{
			Kind: "docker-expose-ports",
			Name: "docker-expose-ports",
			Path: subPath,
			Data: ports,
		})
	}
	sortFingerprints(out)
	return out, nil
}

var ciMarkers = map[string]string{
	".travis.yml":               "travis",
	"Jenkinsfile":               "jenkins",
	".circleci/config.yml":      "circleci",
	".gitlab-ci.yml":            "gitlab",
	"azure-pipelines.yml":       "azure-pipelines",
	".github/workflows/ci.yml":  "github-actions",
	".github/workflows/ci.yaml": "github-actions",
}

func extractCIProvider(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	found := make(map[string]bool)
	for file := range snap.Files {
		if provider, ok := ciMarkers[file]; ok {
			found[provider] = true
		}
		if strings.HasPrefix(file, ".github/workflows/") {
			found["github-actions"] = true
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	providers := make([]string, 0, len(found))
	for p := range found {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return []fingerprint.Fingerprint{{
		Kind: "ci-provider",
		Name: "ci-provider",
		Data: providers,
	}}, nil
}

func extractBranchCount(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	if snap.BranchCount == 0 {
		return nil, nil
	}
	return []fingerprint.Fingerprint{{
		Kind: "branch-count",
		Name: "branch-count",
		Data: map[string]int{"count": snap.BranchCount},
	}}, nil
}

func extractLicense(_ context.Context, snap RepoSnapshot) ([]fingerprint.Fingerprint, error) {
	for _, candidate := range []string{"LICENSE", "LICENSE.md", "LICENSE.txt"} {
		raw, ok := snap.Files[candidate]
		if !ok {
			continue
		}
		line, _, _ := strings.Cut(raw, "\n")
		return []fingerprint.Fingerprint{{
			Kind: "license",
			Name: "license",
			Data: strings.TrimSpace(line),
		}}, nil
	}
	return nil, nil
}

// consolidateCensus derives a per-kind count across every fact extracted in
// the analysis run.
func consolidateCensus(_ context.Context, all []fingerprint.Fingerprint) ([]fingerprint.Fingerprint, error) {
	if len(all) == 0 {
		return nil, nil
	}
	counts := make(map[string]int)
	for _, f := range all {
		counts[f.Kind]++
	}
	return []fingerprint.Fingerprint{{
		Kind: "fingerprint-census",
		Name: "fingerprint-census",
		Data: counts,
	}}, nil
}

func sortFingerprints(fps []fingerprint.Fingerprint) {
	sort.Slice(fps, func(i, j int) bool {
		if fps[i].Name != fps[j].Name {
			return fps[i].Name < fps[j].Name
		}
		return fps[i].Path < fps[j].Path
	})
}

func renderVersionList(f fingerprint.Fingerprint) string {
	switch v := f.Data.(type) {
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", f.Data)
	}
}

func renderMavenDep(f fingerprint.Fingerprint) string {
	get := func(key string) string {
		switch m := f.Data.(type) {
		case map[string]string:
			return m[key]
		case map[string]any:
			s, _ := m[key].(string)
			return s
		}
		return ""
	}
	version := get("version")
	if version == "" {
		return f.Name
	}
	return f.Name + "@" + version
}

func renderDockerImage(f fingerprint.Fingerprint) string {
	get := func(key string) string {
		switch m := f.Data.(type) {
		case map[string]string:
			return m[key]
		case map[string]any:
			s, _ := m[key].(string)
			return s
		}
		return ""
	}
	image, tag := get("image"), get("tag")
	if image == "" {
		return fmt.Sprintf("%v", f.Data)
	}
	return image + ":" + tag
}
