// internal/workers/booking/auto-assign-installers/models.go
package autoassigninstallers

import "github.com/026iFly/foam-sub000/internal/assignment"

type Input struct {
	BookingID string `json:"bookingId"`
}

type Output struct {
	*assignment.AssignResult
	FullyStaffed bool `json:"fullyStaffed"`
}
