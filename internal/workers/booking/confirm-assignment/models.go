// internal/workers/booking/confirm-assignment/models.go
package confirmassignment

import "github.com/026iFly/foam-sub000/internal/assignment"

// Input identifies the assignment either directly or through a
// channel token, and names the installer's action.
type Input struct {
	AssignmentID string `json:"assignmentId,omitempty"`
	Token        string `json:"token,omitempty"`
	Action       string `json:"action"`
	Channel      string `json:"channel,omitempty"`
}

type Output struct {
	*assignment.ConfirmResult
}
