package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/biome"
)

// outputResult writes a CLIResult in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports err in the selected format and returns it so the
// process exits non-zero.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Results: nil, Error: err.Error()})
	return err
}

// Pagination and sort flags shared by listing commands.
var (
	flagLimit  int
	flagOffset int
	flagSort   string
	flagOrder  string
)

func addPaginationFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagLimit, "limit", 50, "max results (max 500)")
	cmd.Flags().IntVar(&flagOffset, "offset", 0, "skip this many results")
}

func addSortFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagSort, "sort", "", "sort field: name|kind|module")
	cmd.Flags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")
}

func buildPagination() biome.Pagination {
	return biome.Pagination{Offset: flagOffset, Limit: flagLimit}
}

func buildSort() (biome.Sort, error) {
	s := biome.Sort{Field: biome.SortField(flagSort), Order: biome.SortOrder(flagOrder)}
	switch s.Field {
	case "", biome.SortByName, biome.SortByKind, biome.SortByModule:
	default:
		return s, fmt.Errorf("invalid sort field %q", flagSort)
	}
	switch s.Order {
	case biome.Asc, biome.Desc:
	default:
		return s, fmt.Errorf("invalid sort order %q", flagOrder)
	}
	return s, nil
}

// --- fork ---

var forkCmd = &cobra.Command{
	Use:   "fork <ref> <name>",
	Short: "Create a branch from an existing version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := requirePackage()
		if err != nil {
			return outputError("fork", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("fork", err)
		}
		defer engine.Close()

		b, err := engine.Fork(pkg, args[0], args[1])
		if err != nil {
			return outputError("fork", err)
		}
		if _, err := engine.Save(); err != nil {
			return outputError("fork", err)
		}
		p, err := engine.Package(pkg)
		if err != nil {
			return outputError("fork", err)
		}
		out := CLIBranch{ID: uint32(b.ID), Name: b.Name, First: uint32(b.First())}
		if b.Fork != nil {
			out.Fork = versionLabel(p, *b.Fork)
		}
		return outputResult(CLIResult{Command: "fork", Results: out})
	},
}

// --- branches ---

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List the branches of a package",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := requirePackage()
		if err != nil {
			return outputError("branches", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("branches", err)
		}
		defer engine.Close()

		infos, err := engine.Query().Branches(pkg)
		if err != nil {
			return outputError("branches", err)
		}
		p, err := engine.Package(pkg)
		if err != nil {
			return outputError("branches", err)
		}
		out := make([]CLIBranch, len(infos))
		for i, info := range infos {
			out[i] = CLIBranch{
				ID:        uint32(info.ID),
				Name:      info.Name,
				First:     uint32(info.First),
				Revisions: info.Revisions,
			}
			if info.Fork != nil {
				out[i].Fork = versionLabel(p, *info.Fork)
			}
			if info.Latest != nil {
				out[i].Latest = fmt.Sprintf("%s@%d", info.Name, info.Latest.Number)
				out[i].Tag = info.Latest.Tag.String()
			}
		}
		return outputResult(CLIResult{Command: "branches", Results: out})
	},
}

// --- resolve ---

var (
	flagRef         string
	flagScopeModule string
	flagScopeSymbol string
	flagHost        string
	flagBase        string
	flagKind        string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <expression>...",
	Short: "Resolve documentation links against a package version",
	Long: `Resolves each expression in the scope given by --scope-module or
--scope-symbol (the external id of a symbol whose lexical scope is used).
Qualifiers narrow an ambiguous overload group.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := requirePackage()
		if err != nil {
			return outputError("resolve", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("resolve", err)
		}
		defer engine.Close()

		c, err := engine.ContextAt(pkg, flagRef)
		if err != nil {
			return outputError("resolve", err)
		}
		scope, err := buildScope(c)
		if err != nil {
			return outputError("resolve", err)
		}
		q := biome.Qualifiers{Host: flagHost, Base: flagBase, Kind: flagKind}

		links := make([]biome.Link, len(args))
		for i, expr := range args {
			links[i] = biome.Link{Expression: expr, Scope: scope, Qualifiers: q}
		}
		selections, err := c.ResolveAll(context.Background(), links)
		if err != nil {
			return outputError("resolve", err)
		}

		out := make([]CLIResolution, len(selections))
		for i, sel := range selections {
			out[i] = CLIResolution{Expression: args[i], Outcome: sel.Outcome().String(), Targets: []CLITarget{}}
			for _, t := range sel.Targets() {
				out[i].Targets = append(out[i].Targets, describeTarget(c, t))
			}
		}
		return outputResult(CLIResult{Command: "resolve", Results: out})
	},
}

func init() {
	resolveCmd.Flags().StringVar(&flagRef, "ref", "", "version: tag, branch, or branch@revision (default: latest of the default branch)")
	resolveCmd.Flags().StringVar(&flagScopeModule, "scope-module", "", "namespace module to resolve in")
	resolveCmd.Flags().StringVar(&flagScopeSymbol, "scope-symbol", "", "external id of the symbol whose scope is used")
	resolveCmd.Flags().StringVar(&flagHost, "host", "", "qualifier: external id of the host type")
	resolveCmd.Flags().StringVar(&flagBase, "base", "", "qualifier: external id of the base symbol")
	resolveCmd.Flags().StringVar(&flagKind, "kind", "", "qualifier: symbol kind")
}

// buildScope derives the lexical scope from the --scope-* flags.
func buildScope(c *biome.Context) (biome.Scope, error) {
	switch {
	case flagScopeSymbol != "":
		s, ok := c.SymbolByID(flagScopeSymbol)
		if !ok {
			return biome.Scope{}, fmt.Errorf("scope symbol %q: %w", flagScopeSymbol, biome.ErrSymbolNotFound)
		}
		scope, ok := c.ScopeOf(s)
		if !ok {
			return biome.Scope{}, fmt.Errorf("scope symbol %q: %w", flagScopeSymbol, biome.ErrSymbolNotFound)
		}
		return scope, nil
	case flagScopeModule != "":
		m, ok := c.Module(flagScopeModule)
		if !ok {
			return biome.Scope{}, fmt.Errorf("scope module %q: %w", flagScopeModule, biome.ErrModuleNotFound)
		}
		return biome.Scope{Namespace: m}, nil
	}
	return biome.Scope{}, nil
}

func describeTarget(c *biome.Context, t biome.Target) CLITarget {
	uri, _ := c.URI(t)
	out := CLITarget{Kind: t.Kind.String(), URI: uri}
	if t.Kind != biome.TargetSymbol {
		return out
	}
	out.ID, _ = c.SymbolID(t.Composite.Base)
	if host, ok := t.Composite.Host(); ok {
		out.Host, _ = c.SymbolID(host)
	}
	out.Reachability = c.Reachability(t.Composite).String()
	return out
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <symbol-id>",
	Short: "Show every recorded change of a symbol up to a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := requirePackage()
		if err != nil {
			return outputError("history", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("history", err)
		}
		defer engine.Close()

		v, err := engine.Lookup(pkg, flagRef)
		if err != nil {
			return outputError("history", err)
		}
		changes, err := engine.Query().SymbolHistory(pkg, v, args[0])
		if err != nil {
			return outputError("history", err)
		}
		p, err := engine.Package(pkg)
		if err != nil {
			return outputError("history", err)
		}
		out := make([]CLIChange, len(changes))
		for i, ch := range changes {
			out[i] = CLIChange{Version: versionLabel(p, ch.Version), Field: ch.Field, Value: ch.Value}
		}
		return outputResult(CLIResult{Command: "history", Results: out})
	},
}

func init() {
	historyCmd.Flags().StringVar(&flagRef, "ref", "", "version: tag, branch, or branch@revision")
}

// --- symbols ---

var (
	flagSymbolKinds  []string
	flagSymbolModule string
	flagSymbolPrefix []string
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List the symbols present at a version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := requirePackage()
		if err != nil {
			return outputError("symbols", err)
		}
		sorting, err := buildSort()
		if err != nil {
			return outputError("symbols", err)
		}
		engine, err := openEngine()
		if err != nil {
			return outputError("symbols", err)
		}
		defer engine.Close()

		c, err := engine.ContextAt(pkg, flagRef)
		if err != nil {
			return outputError("symbols", err)
		}
		filter := biome.SymbolFilter{Kinds: flagSymbolKinds, PathPrefix: flagSymbolPrefix}
		if flagSymbolModule != "" {
			filter.Module = &flagSymbolModule
		}
		page := engine.Query().Symbols(c, filter, sorting, buildPagination())

		out := make([]CLISymbol, len(page.Items))
		for i, s := range page.Items {
			out[i] = CLISymbol{ID: s.ID, Module: s.Module, Kind: s.Kind, URI: s.URI}
		}
		total := page.TotalCount
		return outputResult(CLIResult{Command: "symbols", Results: out, TotalCount: &total})
	},
}

func init() {
	symbolsCmd.Flags().StringVar(&flagRef, "ref", "", "version: tag, branch, or branch@revision")
	symbolsCmd.Flags().StringSliceVar(&flagSymbolKinds, "kind", nil, "filter by kind (repeatable)")
	symbolsCmd.Flags().StringVar(&flagSymbolModule, "module", "", "filter by declaring module")
	symbolsCmd.Flags().StringSliceVar(&flagSymbolPrefix, "path", nil, "filter by path prefix components")
	addPaginationFlags(symbolsCmd)
	addSortFlags(symbolsCmd)
}
