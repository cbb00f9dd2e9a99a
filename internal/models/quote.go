// internal/models/quote.go
package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Quote is the persisted result of a quote recalculation.
type Quote struct {
	ID           string    `json:"quoteId"`
	CustomerID   string    `json:"customerId,omitempty"`
	TotalExclVat float64   `json:"totalExclVat"`
	TotalInclVat float64   `json:"totalInclVat"`
	Vat          float64   `json:"vat"`
	RotDeduction float64   `json:"rotDeduction"`
	FinalTotal   float64   `json:"finalTotal"`
	OverallRisk  string    `json:"overallRisk"`
	CalculatedAt time.Time `json:"calculatedAt"`

	Parts []QuotePart `json:"parts"`
}

// QuotePart is one building part's recommended configuration and cost.
type QuotePart struct {
	PartID       string  `json:"partId"`
	PartType     string  `json:"partType"`
	Area         float64 `json:"area"`
	Config       string  `json:"config"`
	ClosedCellMm float64 `json:"closedCellMm"`
	OpenCellMm   float64 `json:"openCellMm"`
	UValue       float64 `json:"uValue"`
	RiskLevel    string  `json:"riskLevel"`
	MaterialCost float64 `json:"materialCost"`
	LaborCost    float64 `json:"laborCost"`
	TotalCost    float64 `json:"totalCost"`
}

// QuoteRepository persists quotes with their parts in one transaction.
type QuoteRepository struct {
	db *sql.DB
}

func NewQuoteRepository(db *sql.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Save upserts the quote header and replaces its part rows. A
// recalculation always rewrites the full part set.
func (r *QuoteRepository) Save(ctx context.Context, q *Quote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quote tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotes (id, customer_id, total_excl_vat, total_incl_vat, vat, rot_deduction, final_total, overall_risk, calculated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			total_excl_vat = EXCLUDED.total_excl_vat,
			total_incl_vat = EXCLUDED.total_incl_vat,
			vat            = EXCLUDED.vat,
			rot_deduction  = EXCLUDED.rot_deduction,
			final_total    = EXCLUDED.final_total,
			overall_risk   = EXCLUDED.overall_risk,
			calculated_at  = EXCLUDED.calculated_at`,
		q.ID, q.CustomerID, q.TotalExclVat, q.TotalInclVat, q.Vat,
		q.RotDeduction, q.FinalTotal, q.OverallRisk, q.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert quote: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quote_parts WHERE quote_id = $1`, q.ID); err != nil {
		return fmt.Errorf("clear quote parts: %w", err)
	}

	for _, p := range q.Parts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quote_parts (quote_id, part_id, part_type, area, config, closed_cell_mm, open_cell_mm, u_value, risk_level, material_cost, labor_cost, total_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			q.ID, p.PartID, p.PartType, p.Area, p.Config, p.ClosedCellMm,
			p.OpenCellMm, p.UValue, p.RiskLevel, p.MaterialCost, p.LaborCost, p.TotalCost)
		if err != nil {
			return fmt.Errorf("insert quote part %s: %w", p.PartID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quote tx: %w", err)
	}
	return nil
}
