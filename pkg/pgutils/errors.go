// Package pgutils classifies PostgreSQL errors surfaced through the driver.
package pgutils

import (
	"strings"
)

// CodeUniqueViolation is the SQLSTATE for a unique constraint violation.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const CodeUniqueViolation = "23505"

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	return containsErrorCode(err, CodeUniqueViolation)
}

// containsErrorCode checks if the error message carries a PostgreSQL error
// code.
func containsErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), code)
}
