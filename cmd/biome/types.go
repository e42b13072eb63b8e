package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIUpdate reports one ingested revision.
type CLIUpdate struct {
	Package      string   `json:"package"`
	Version      string   `json:"version"`
	Hash         string   `json:"hash"`
	Duplicate    bool     `json:"duplicate"`
	Modules      int      `json:"modules"`
	Symbols      int      `json:"symbols"`
	Articles     int      `json:"articles"`
	NewSymbols   int      `json:"new_symbols"`
	Keyframes    int      `json:"keyframes"`
	DroppedEdges int      `json:"dropped_edges"`
	Warnings     []string `json:"warnings,omitempty"`
	Snapshot     string   `json:"snapshot,omitempty"`
}

// CLIBranch is a JSON-friendly branch summary.
type CLIBranch struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Fork      string `json:"fork,omitempty"`
	First     uint32 `json:"first"`
	Revisions int    `json:"revisions"`
	Latest    string `json:"latest,omitempty"`
	Tag       string `json:"tag,omitempty"`
}

// CLITarget is one resolved link target.
type CLITarget struct {
	Kind         string `json:"kind"`
	URI          string `json:"uri"`
	ID           string `json:"id,omitempty"`
	Host         string `json:"host,omitempty"`
	Reachability string `json:"reachability,omitempty"`
}

// CLIResolution is the outcome of resolving one expression.
type CLIResolution struct {
	Expression string      `json:"expression"`
	Outcome    string      `json:"outcome"`
	Targets    []CLITarget `json:"targets"`
}

// CLIChange is one keyframe of a symbol's history.
type CLIChange struct {
	Version string `json:"version"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

// CLISymbol is a JSON-friendly symbol listing entry.
type CLISymbol struct {
	ID     string `json:"id"`
	Module string `json:"module"`
	Kind   string `json:"kind"`
	URI    string `json:"uri"`
}
