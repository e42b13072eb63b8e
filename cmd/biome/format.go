package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatUpdateText formats a CLIUpdate as readable text.
func formatUpdateText(w io.Writer, u CLIUpdate) {
	if u.Duplicate {
		fmt.Fprintf(w, "%s %s unchanged (hash %s)\n", u.Package, u.Version, shortHash(u.Hash))
		return
	}
	fmt.Fprintf(w, "%s %s: %d modules, %d symbols (%d new), %d articles, %d keyframes\n",
		u.Package, u.Version, u.Modules, u.Symbols, u.NewSymbols, u.Articles, u.Keyframes)
	if u.DroppedEdges > 0 {
		fmt.Fprintf(w, "Dropped %d edges\n", u.DroppedEdges)
	}
	for _, warning := range u.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

// formatBranchesText formats CLIBranch results as aligned columns.
func formatBranchesText(w io.Writer, branches []CLIBranch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFORK\tREVISIONS\tLATEST\tTAG")
	for _, b := range branches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.Name, orDash(b.Fork), b.Revisions, orDash(b.Latest), orDash(b.Tag))
	}
	tw.Flush()
}

// formatResolutionsText prints one block per expression.
func formatResolutionsText(w io.Writer, resolutions []CLIResolution) {
	for _, r := range resolutions {
		fmt.Fprintf(w, "%s: %s\n", r.Expression, r.Outcome)
		for _, t := range r.Targets {
			line := "  " + t.Kind + " " + t.URI
			if t.ID != "" {
				line += " (" + t.ID + ")"
			}
			if t.Reachability != "" && t.Reachability != "explicit" {
				line += " [" + t.Reachability + "]"
			}
			fmt.Fprintln(w, line)
		}
	}
}

// formatChangesText formats CLIChange results as aligned columns.
func formatChangesText(w io.Writer, changes []CLIChange) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tFIELD\tVALUE")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Version, c.Field, firstLine(c.Value))
	}
	tw.Flush()
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URI\tKIND\tMODULE\tID")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.URI, s.Kind, s.Module, s.ID)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIUpdate:
		formatUpdateText(w, v)
	case []CLIBranch:
		formatBranchesText(w, v)
	case CLIBranch:
		formatBranchesText(w, []CLIBranch{v})
	case []CLIResolution:
		formatResolutionsText(w, v)
	case []CLIChange:
		formatChangesText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIBranch:
		return len(r)
	case []CLIResolution:
		return len(r)
	case []CLIChange:
		return len(r)
	case []CLISymbol:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
