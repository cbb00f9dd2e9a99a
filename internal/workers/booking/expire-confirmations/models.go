// internal/workers/booking/expire-confirmations/models.go
package expireconfirmations

import "github.com/026iFly/foam-sub000/internal/assignment"

// Input is empty today; the sweep takes its TTL from engine
// configuration. Kept as a struct so the process can add overrides
// without a contract change.
type Input struct{}

type Output struct {
	*assignment.ExpireResult
}
