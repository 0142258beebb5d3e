// Package requestid generates request identifiers for tracing.
package requestid

import "github.com/google/uuid"

// New returns a fresh request id.
func New() string {
	return uuid.New().String()
}
