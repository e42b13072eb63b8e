package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/biome"
	"github.com/jward/biome/internal/config"
)

var (
	flagDB     string
	flagFormat string
	flagPkg    string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "biome",
	Short:         "Versioned, branch-aware documentation entity store",
	Long:          "Biome records the modules, symbols and articles of packages across revisions and branches, and resolves documentation links against any pinned version.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: store.path from config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVarP(&flagPkg, "package", "p", "", "package name")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(symbolsCmd)
}

// loadConfig reads the layered configuration. Diagnostics go to stderr.
func loadConfig() (*config.Config, error) {
	return config.NewLoader(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))).Load()
}

// openEngine opens the engine on the database named by --db or the config.
func openEngine() (*biome.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd), cfg.Store.Path)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	engine, err := biome.Open(dbPath, biome.WithConfig(cfg), biome.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening engine: %w", err)
	}
	return engine, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// configured path, anchored at repoRoot when relative.
func resolveDBPath(repoRoot, configured string) string {
	path := configured
	if flagDB != "" {
		path = flagDB
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}

// requirePackage returns --package or an error.
func requirePackage() (string, error) {
	if flagPkg == "" {
		return "", fmt.Errorf("--package is required")
	}
	return flagPkg, nil
}
