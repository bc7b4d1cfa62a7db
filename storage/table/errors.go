package table

import "github.com/pkg/errors"

// Logical errors (spec §7.2): reported to the caller, tree unchanged.
var (
	// ErrDuplicateKey is returned by Insert when the id already exists.
	ErrDuplicateKey = errors.New("table: id already exists")
	// ErrNotFound is returned by Update/Delete when the id is absent.
	// Get reports absence through its found result instead.
	ErrNotFound = errors.New("table: id not found")
)

// InvariantError marks an assertion failure in the tree's internal
// structure (spec §7.3) — a child index beyond num_keys, a max-key
// lookup on an empty leaf, a separator that doesn't match the key it
// should. These are not supposed to happen; unlike ErrDuplicateKey and
// ErrNotFound, they are not part of normal control flow and the
// process that receives one should flush what it can and exit
// nonzero rather than continue operating on a tree it can no longer
// trust.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return "table: invariant violation: " + e.msg }

func invariantErrorf(format string, args ...interface{}) error {
	return &InvariantError{msg: errors.Errorf(format, args...).Error()}
}
