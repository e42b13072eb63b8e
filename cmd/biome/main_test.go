package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/biome"
)

// =============================================================================
// Repository root and database path
// =============================================================================

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath_ConfiguredPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/repo", ".biome", "biome.db"), resolveDBPath("/repo", ".biome/biome.db"))
	assert.Equal(t, "/var/lib/biome.db", resolveDBPath("/repo", "/var/lib/biome.db"))
}

// =============================================================================
// Flags
// =============================================================================

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("xml"))
}

func TestParseDependencyRefs(t *testing.T) {
	t.Parallel()
	refs, err := parseDependencyRefs([]string{"core", "core@1.0.0", "core@main@3"})
	require.NoError(t, err)
	assert.Equal(t, []biome.DependencyRef{
		{Package: "core"},
		{Package: "core", Ref: "1.0.0"},
		{Package: "core", Ref: "main@3"},
	}, refs)

	_, err = parseDependencyRefs([]string{"@1.0.0"})
	assert.Error(t, err)
}

// =============================================================================
// Graph files
// =============================================================================

const twoGraphs = `module: Core
vertices:
  - id: s:Buffer
    path: [Buffer]
    kind: struct
  - id: s:Buffer.read
    path: [Buffer, read]
    kind: method
edges:
  - source: s:Buffer.read
    target: s:Buffer
    relation: member
---
module: Ext
dependencies: [Core]
articles:
  - id: a:intro
    path: [Intro]
    title: Introduction
`

func TestDecodeGraphs_MultipleDocuments(t *testing.T) {
	t.Parallel()
	graphs, err := decodeGraphs(strings.NewReader(twoGraphs))
	require.NoError(t, err)
	require.Len(t, graphs, 2)

	assert.Equal(t, "Core", graphs[0].Module)
	require.Len(t, graphs[0].Vertices, 2)
	assert.Equal(t, []string{"Buffer", "read"}, graphs[0].Vertices[1].Path)
	assert.Equal(t, biome.RelationMember, graphs[0].Edges[0].Relation)

	assert.Equal(t, "Ext", graphs[1].Module)
	assert.Equal(t, []string{"Core"}, graphs[1].Dependencies)
	assert.Equal(t, "Introduction", graphs[1].Articles[0].Title)
}

func TestDecodeGraphs_MissingModule(t *testing.T) {
	t.Parallel()
	_, err := decodeGraphs(strings.NewReader("vertices: []\n"))
	assert.Error(t, err)
}

func TestGraphFiles_GlobAndArgs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	nested := filepath.Join(dir, "graphs", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	a := filepath.Join(dir, "graphs", "a.yaml")
	b := filepath.Join(nested, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte("module: A\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("module: B\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "notes.txt"), []byte("x"), 0o644))

	files, err := graphFiles([]string{a}, filepath.Join(dir, "graphs", "**", "*.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	graphs, err := loadGraphFiles(files)
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "B", graphs[1].Module)
}

func TestGraphFiles_NothingSelected(t *testing.T) {
	t.Parallel()
	_, err := graphFiles(nil, filepath.Join(t.TempDir(), "*.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// Text output
// =============================================================================

func TestWriteResultText_BranchesWithFooter(t *testing.T) {
	t.Parallel()
	total := 5
	var buf bytes.Buffer
	err := writeResultText(&buf, CLIResult{
		Command: "branches",
		Results: []CLIBranch{
			{ID: 0, Name: "main", Revisions: 2, Latest: "main@1", Tag: "1.0.0"},
			{ID: 1, Name: "feature", Fork: "main@1", First: 2, Revisions: 1, Latest: "feature@2"},
		},
		TotalCount: &total,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "feature")
	assert.Contains(t, out, "Showing 2 of 5 results")
}

func TestWriteResultText_Resolution(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeResultText(&buf, CLIResult{
		Command: "resolve",
		Results: []CLIResolution{{
			Expression: "Buffer.read",
			Outcome:    "one",
			Targets:    []CLITarget{{Kind: "symbol", URI: "core/buffer.read", ID: "s:Buffer.read", Reachability: "transitive"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Buffer.read: one\n  symbol core/buffer.read (s:Buffer.read) [transitive]\n", buf.String())
}

func TestWriteResultText_UnsupportedType(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.Error(t, writeResultText(&buf, CLIResult{Results: 42}))
}
