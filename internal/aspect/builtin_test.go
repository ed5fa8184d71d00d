package aspect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/fingerprint"
)

func snapWithFiles(files map[string]string) RepoSnapshot {
	return RepoSnapshot{Files: files}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	_, err := r.Of("typescript-version")
	assert.NoError(t, err)
	_, err = r.Of("maven-direct-dep")
	assert.NoError(t, err)

	// Registering twice conflicts on the first builtin.
	assert.Error(t, RegisterBuiltins(r))
}

func TestExtractTypeScriptVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("reads devDependencies and strips range prefix", func(t *testing.T) {
		fps, err := extractTypeScriptVersion(ctx, snapWithFiles(map[string]string{
			"package.json": `{"devDependencies": {"typescript": "^3.1.0"}}`,
		}))
		require.NoError(t, err)
		require.Len(t, fps, 1)
		assert.Equal(t, []string{"3.1.0"}, fps[0].Data)
	})

	t.Run("no package.json means no fact", func(t *testing.T) {
		fps, err := extractTypeScriptVersion(ctx, snapWithFiles(nil))
		require.NoError(t, err)
		assert.Empty(t, fps)
	})

	t.Run("malformed package.json fails extraction", func(t *testing.T) {
		_, err := extractTypeScriptVersion(ctx, snapWithFiles(map[string]string{
			"package.json": "{not json",
		}))
		assert.Error(t, err)
	})
}

func TestExtractMavenDirectDeps(t *testing.T) {
	ctx := context.Background()

	pom := `<?xml version="1.0"?>
<project>
  <dependencies>
    <dependency><groupId>g2</groupId><artifactId>a2</artifactId><version>2.0</version></dependency>
    <dependency><groupId>g1</groupId><artifactId>a1</artifactId><version>1.0</version></dependency>
  </dependencies>
</project>`

	t.Run("one fact per dependency, sorted by name", func(t *testing.T) {
		fps, err := extractMavenDirectDeps(ctx, snapWithFiles(map[string]string{"pom.xml": pom}))
		require.NoError(t, err)
		require.Len(t, fps, 2)
		assert.Equal(t, "g1:a1", fps[0].Name)
		assert.Equal(t, "g2:a2", fps[1].Name)
		assert.Empty(t, fps[0].Path)
	})

	t.Run("nested pom becomes a virtual project", func(t *testing.T) {
		fps, err := extractMavenDirectDeps(ctx, snapWithFiles(map[string]string{
			"services/api/pom.xml": pom,
		}))
		require.NoError(t, err)
		require.Len(t, fps, 2)
		assert.Equal(t, "services/api", fps[0].Path)
	})
}

func TestExtractDockerBaseImages(t *testing.T) {
	ctx := context.Background()

	t.Run("first FROM line wins", func(t *testing.T) {
		fps, err := extractDockerBaseImages(ctx, snapWithFiles(map[string]string{
			"Dockerfile": "FROM golang:1.22 AS build\nFROM alpine:3.19\n",
		}))
		require.NoError(t, err)
		require.Len(t, fps, 1)
		assert.Equal(t, map[string]string{"image": "golang", "tag": "1.22"}, fps[0].Data)
	})

	t.Run("untagged image defaults to latest", func(t *testing.T) {
		fps, err := extractDockerBaseImages(ctx, snapWithFiles(map[string]string{
			"Dockerfile": "FROM ubuntu\n",
		}))
		require.NoError(t, err)
		require.Len(t, fps, 1)
		assert.Equal(t, map[string]string{"image": "ubuntu", "tag": "latest"}, fps[0].Data)
	})
}

func TestExtractDockerExposePorts(t *testing.T) {
	ctx := context.Background()

	t.Run("ports are collected and sorted", func(t *testing.T) {
		fps, err := extractDockerExposePorts(ctx, snapWithFiles(map[string]string{
			"Dockerfile": "FROM alpine:3.19\nEXPOSE 9090\nEXPOSE 8080 8081\n",
		}))
		require.NoError(t, err)
		require.Len(t, fps, 1)
		assert.Equal(t, []string{"8080", "8081", "9090"}, fps[0].Data)
	})

	t.Run("every Dockerfile yields its own fact", func(t *testing.T) {
		fps, err := extractDockerExposePorts(ctx, snapWithFiles(map[string]string{
			"Dockerfile":                 "FROM alpine:3.19\nEXPOSE 8080\n",
			"services/api/Dockerfile":    "FROM alpine:3.19\nEXPOSE 9090\n",
			"services/worker/Dockerfile": "FROM alpine:3.19\n",
		}))
		require.NoError(t, err)
		require.Len(t, fps, 2)
		assert.Equal(t, "", fps[0].Path)
		assert.Equal(t, []string{"8080"}, fps[0].Data)
		assert.Equal(t, "services/api", fps[1].Path)
		assert.Equal(t, []string{"9090"}, fps[1].Data)
	})
}

func TestExtractCIProvider(t *testing.T) {
	fps, err := extractCIProvider(context.Background(), snapWithFiles(map[string]string{
		".github/workflows/build.yml": "name: build",
		".travis.yml":                 "language: go",
	}))
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, []string{"github-actions", "travis"}, fps[0].Data)
}

func TestExtractLicense(t *testing.T) {
	fps, err := extractLicense(context.Background(), snapWithFiles(map[string]string{
		"LICENSE": "Apache License 2.0\n\nfull text follows",
	}))
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, "Apache License 2.0", fps[0].Data)
}

func TestConsolidateCensus(t *testing.T) {
	facts := []fingerprint.Fingerprint{
		{Kind: "maven-direct-dep", Name: "g1:a1"},
		{Kind: "maven-direct-dep", Name: "g2:a2"},
		{Kind: "license", Name: "license"},
	}
	fps, err := consolidateCensus(context.Background(), facts)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, map[string]int{"maven-direct-dep": 2, "license": 1}, fps[0].Data)
}
