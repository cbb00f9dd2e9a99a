// internal/availability/lookup.go
package availability

import (
	"context"
	"database/sql"
	"fmt"

	commonerrors "github.com/026iFly/foam-sub000/internal/common/errors"
	"github.com/026iFly/foam-sub000/internal/common/logger"
)

// Installer is one row of the priority-ordered availability list.
type Installer struct {
	ID        string `json:"installerId"`
	Name      string `json:"installerName"`
	Email     string `json:"email,omitempty"`
	DiscordID string `json:"discordId,omitempty"`
	Available bool   `json:"available"`
}

// Lookup ranks installers for a date and slot. Priority is workload
// based: fewest assignments in the surrounding 30 days first, name as
// the tiebreaker.
type Lookup struct {
	db     *sql.DB
	logger logger.Logger
}

func NewLookup(db *sql.DB, log logger.Logger) *Lookup {
	return &Lookup{db: db, logger: log}
}

const availabilityQuery = `
	SELECT i.id, i.name, COALESCE(i.email, ''), COALESCE(i.discord_id, ''), COUNT(b.id) AS workload
	FROM installers i
	LEFT JOIN booking_assignments ba ON ba.installer_id = i.id AND ba.status != 'declined'
	LEFT JOIN bookings b ON b.id = ba.booking_id
		AND b.scheduled_date BETWEEN $1::date - INTERVAL '30 days' AND $1::date + INTERVAL '30 days'
	WHERE i.active = true
	  AND NOT EXISTS (
		SELECT 1 FROM installer_blocked_dates bd
		WHERE bd.installer_id = i.id
		  AND bd.blocked_date = $1
		  AND (bd.slot = 'full' OR bd.slot = $2)
	  )
	GROUP BY i.id, i.name, i.email, i.discord_id
	ORDER BY workload ASC, i.name ASC`

// ListAvailable returns installers free on the given date and slot,
// highest priority first.
func (l *Lookup) ListAvailable(ctx context.Context, date, slot string) ([]Installer, error) {
	rows, err := l.db.QueryContext(ctx, availabilityQuery, date, slot)
	if err != nil {
		return nil, commonerrors.NewAvailabilityQueryFailedError(fmt.Errorf("query installer availability: %w", err))
	}
	defer rows.Close()

	var installers []Installer
	for rows.Next() {
		var (
			inst     Installer
			workload int
		)
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Email, &inst.DiscordID, &workload); err != nil {
			return nil, commonerrors.NewAvailabilityQueryFailedError(fmt.Errorf("scan installer row: %w", err))
		}
		inst.Available = true
		installers = append(installers, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewAvailabilityQueryFailedError(fmt.Errorf("read installer rows: %w", err))
	}

	l.logger.Debug("availability resolved", map[string]interface{}{
		"date":  date,
		"slot":  slot,
		"count": len(installers),
	})

	return installers, nil
}
