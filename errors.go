package biome

import (
	"errors"

	"github.com/jward/biome/internal/tree"
)

// Package errors
var (
	// ErrPackageNotFound indicates that no package has the given name.
	ErrPackageNotFound = errors.New("package not found")

	// ErrPackageExists indicates that a package with the given name is already registered.
	ErrPackageExists = errors.New("package already exists")

	// ErrTooManyPackages indicates that the engine ran out of package indices.
	ErrTooManyPackages = errors.New("package index space exhausted")
)

// Branch errors
var (
	// ErrBranchNotFound indicates that no branch has the given id or name.
	ErrBranchNotFound = tree.ErrBranchNotFound

	// ErrBranchExists indicates that a branch with the given name already exists.
	ErrBranchExists = tree.ErrBranchExists

	// ErrBranchBusy indicates that another writer is building a revision on the branch.
	ErrBranchBusy = tree.ErrBranchBusy
)

// Version errors
var (
	// ErrRevisionNotFound indicates that a revision was never committed on the branch.
	ErrRevisionNotFound = tree.ErrRevisionNotFound

	// ErrTagExists indicates that the tag already labels another revision of the package.
	ErrTagExists = errors.New("tag already exists")

	// ErrTagOrder indicates that a semantic tag does not follow the branch's previous one.
	ErrTagOrder = errors.New("semantic tag does not increase")

	// ErrTagNotFound indicates that no revision carries the given tag.
	ErrTagNotFound = errors.New("tag not found")
)

// Lookup errors
var (
	// ErrModuleNotFound indicates that no module has the given name at the version.
	ErrModuleNotFound = errors.New("module not found")

	// ErrSymbolNotFound indicates that no symbol has the given external id at the version.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Persistence errors
var (
	// ErrNoStore indicates that the engine was not opened on a database.
	ErrNoStore = errors.New("engine has no store")
)
