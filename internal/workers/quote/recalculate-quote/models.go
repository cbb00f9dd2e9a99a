// internal/workers/quote/recalculate-quote/models.go
package recalculatequote

import (
	"github.com/026iFly/foam-sub000/internal/costing"
	"github.com/026iFly/foam-sub000/internal/insulation"
)

// PartInput is one building part of the quote request.
type PartInput struct {
	PartID            string  `json:"partId"`
	PartType          string  `json:"partType"`
	Area              float64 `json:"area"`
	HasVaporBarrier   bool    `json:"hasVaporBarrier"`
	TargetThicknessMm float64 `json:"targetThicknessMm,omitempty"`
}

// Input carries the process variables for a quote recalculation.
// Climate fields are optional; zone lookup fills the outdoor design
// temperature when none is given.
type Input struct {
	QuoteID     string      `json:"quoteId"`
	CustomerID  string      `json:"customerId,omitempty"`
	ClimateZone string      `json:"climateZone,omitempty"`
	IndoorTemp  float64     `json:"indoorTemp,omitempty"`
	IndoorRH    float64     `json:"indoorRh,omitempty"`
	OutdoorTemp *float64    `json:"outdoorTemp,omitempty"`
	CrewSize    int         `json:"crewSize,omitempty"`
	RotEligible bool        `json:"rotEligible,omitempty"`
	RotShares   []float64   `json:"rotShares,omitempty"`
	Parts       []PartInput `json:"parts"`
}

// PartRecommendation pairs a part with its chosen configuration.
type PartRecommendation struct {
	PartID         string                    `json:"partId"`
	PartType       string                    `json:"partType"`
	Area           float64                   `json:"area"`
	Recommendation insulation.Recommendation `json:"recommendation"`
}

type Output struct {
	QuoteID         string               `json:"quoteId"`
	Recommendations []PartRecommendation `json:"recommendations"`
	Totals          costing.Totals       `json:"totals"`
	OverallRisk     string               `json:"overallRisk"`
	Warnings        []string             `json:"warnings,omitempty"`
}
