package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jward/biome"
)

var (
	flagIngestGlob   string
	flagIngestBranch string
	flagIngestTag    string
	flagIngestDeps   []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Record a new revision of a package from module graph files",
	Long: `Reads YAML module graphs (one or more documents per file) and commits them
as the next revision of the package. Files may be named directly or
selected with --glob. The database is saved after a successful update.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestGlob, "glob", "", "doublestar pattern selecting graph files (e.g. 'graphs/**/*.yaml')")
	ingestCmd.Flags().StringVar(&flagIngestBranch, "branch", "", "branch to commit to (default: tree.default_branch)")
	ingestCmd.Flags().StringVar(&flagIngestTag, "tag", "", "tag for the new revision")
	ingestCmd.Flags().StringArrayVar(&flagIngestDeps, "dep", nil, "pinned dependency as package[@ref] (repeatable)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	pkg, err := requirePackage()
	if err != nil {
		return outputError("ingest", err)
	}

	files, err := graphFiles(args, flagIngestGlob)
	if err != nil {
		return outputError("ingest", err)
	}
	graphs, err := loadGraphFiles(files)
	if err != nil {
		return outputError("ingest", err)
	}
	deps, err := parseDependencyRefs(flagIngestDeps)
	if err != nil {
		return outputError("ingest", err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("ingest", err)
	}
	defer engine.Close()

	res, err := engine.Update(biome.Import{
		Package:      pkg,
		Branch:       flagIngestBranch,
		Tag:          flagIngestTag,
		Graphs:       graphs,
		Dependencies: deps,
	})
	if err != nil {
		return outputError("ingest", err)
	}

	snapshot, err := engine.Save()
	if err != nil && !errors.Is(err, biome.ErrNoStore) {
		return outputError("ingest", err)
	}

	p, err := engine.Package(pkg)
	if err != nil {
		return outputError("ingest", err)
	}
	return outputResult(CLIResult{
		Command: "ingest",
		Results: CLIUpdate{
			Package:      pkg,
			Version:      versionLabel(p, res.Version),
			Hash:         res.Hash,
			Duplicate:    res.Duplicate,
			Modules:      res.Modules,
			Symbols:      res.Symbols,
			Articles:     res.Articles,
			NewSymbols:   res.NewSymbols,
			Keyframes:    res.Keyframes,
			DroppedEdges: res.DroppedEdges,
			Warnings:     res.Warnings,
			Snapshot:     snapshot,
		},
	})
}

// graphFiles merges explicit file arguments with the files matched by glob.
// Duplicates are removed; order follows the arguments then the matches.
func graphFiles(args []string, glob string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	}

	for _, arg := range args {
		if err := add(arg); err != nil {
			return nil, err
		}
	}
	if glob != "" {
		pattern := glob
		if !filepath.IsAbs(pattern) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("getting cwd: %w", err)
			}
			pattern = filepath.Join(cwd, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", glob, err)
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no graph files given")
	}
	return files, nil
}

// loadGraphFiles decodes every YAML document of every file as a
// ModuleGraph.
func loadGraphFiles(files []string) ([]biome.ModuleGraph, error) {
	var graphs []biome.ModuleGraph
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening graph file: %w", err)
		}
		decoded, err := decodeGraphs(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		graphs = append(graphs, decoded...)
	}
	return graphs, nil
}

func decodeGraphs(r io.Reader) ([]biome.ModuleGraph, error) {
	dec := yaml.NewDecoder(r)
	var graphs []biome.ModuleGraph
	for {
		var g biome.ModuleGraph
		err := dec.Decode(&g)
		if errors.Is(err, io.EOF) {
			return graphs, nil
		}
		if err != nil {
			return nil, err
		}
		if g.Module == "" {
			return nil, fmt.Errorf("document %d: module name is required", len(graphs)+1)
		}
		graphs = append(graphs, g)
	}
}

// parseDependencyRefs parses package[@ref] values. The ref is split at the
// first '@' so "pkg@main@3" pins branch main, revision 3.
func parseDependencyRefs(values []string) ([]biome.DependencyRef, error) {
	refs := make([]biome.DependencyRef, 0, len(values))
	for _, v := range values {
		name, ref, _ := strings.Cut(v, "@")
		if name == "" {
			return nil, fmt.Errorf("invalid dependency %q: package name is required", v)
		}
		refs = append(refs, biome.DependencyRef{Package: name, Ref: ref})
	}
	return refs, nil
}

// versionLabel prints v as branch@revision.
func versionLabel(p *biome.Package, v biome.Version) string {
	for _, b := range p.Branches() {
		if b.ID == v.Branch {
			return fmt.Sprintf("%s@%d", b.Name, v.Revision)
		}
	}
	return v.String()
}
