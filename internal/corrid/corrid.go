// Package corrid generates and carries the correlation id that is echoed
// in logs and error responses to stitch a request's trace together.
package corrid

import "github.com/google/uuid"

// New generates a fresh correlation id for a request that did not supply
// an X-Request-Id header.
func New() string {
	return uuid.NewString()
}
