package schema

import "errors"

// Schema-build errors. All of these are fatal: registration happens once at
// startup and the process must not serve with a malformed schema.
var (
	// ErrConflict covers duplicate labels, supertype cycles, invalid
	// relation narrowing and non-optional relations with empty target sets.
	ErrConflict = errors.New("schema conflict")

	// ErrUnresolvedTarget is returned when a relation or embedded field
	// names a label that was never registered.
	ErrUnresolvedTarget = errors.New("unresolved target")

	// ErrInvalidReification is returned when a reified template is
	// instantiated with a union or trait argument.
	ErrInvalidReification = errors.New("invalid reification")
)
