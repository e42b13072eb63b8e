package tree

import "errors"

// Branch errors
var (
	// ErrBranchNotFound indicates that no branch has the given id or name.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrBranchExists indicates that a branch with the given name already exists.
	ErrBranchExists = errors.New("branch already exists")

	// ErrBranchBusy indicates that another writer is building a revision on the branch.
	ErrBranchBusy = errors.New("branch has a revision under construction")
)

// Revision errors
var (
	// ErrRevisionNotFound indicates that a revision was never committed on the branch.
	ErrRevisionNotFound = errors.New("revision not found")
)
