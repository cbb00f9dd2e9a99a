// internal/costing/variables.go
package costing

import "github.com/026iFly/foam-sub000/internal/insulation"

// CostVariables is the flat pricing input the rollup consumes. Values
// come from the persisted variable table with documented fallbacks;
// the rollup treats them as read-only.
type CostVariables struct {
	ClosedDensity        float64 // kg/m³
	ClosedMaterialCost   float64 // kr/kg
	ClosedMarginPct      float64
	ClosedSprayTimePerM3 float64 // h/m³

	OpenDensity        float64
	OpenMaterialCost   float64
	OpenMarginPct      float64
	OpenSprayTimePerM3 float64

	SetupHours           float64
	PersonnelCostPerHour float64 // kr/h
	GeneratorCost        float64 // kr, flat
	TravelHours          float64
	TravelCost           float64 // kr, flat
}

// PartInput is one building part with its chosen foam configuration.
type PartInput struct {
	PartID       string
	PartType     insulation.PartType
	Area         float64 // m²
	Config       insulation.ConfigKind
	ClosedCellMm float64
	OpenCellMm   float64
}

// PartCost is the per-part cost breakdown.
type PartCost struct {
	PartID       string  `json:"partId"`
	ClosedCellKg float64 `json:"closedCellKg"`
	OpenCellKg   float64 `json:"openCellKg"`
	MaterialCost float64 `json:"materialCost"`
	SprayHours   float64 `json:"sprayHours"`
	LaborCost    float64 `json:"laborCost"`
	TotalCost    float64 `json:"totalCost"`
}

// RollupOptions carries crew and tax policy knobs. Zero values fall
// back to the documented business defaults.
type RollupOptions struct {
	CrewSize        int
	DefaultCrewSize int
	// SingleInstallerSurchargePct inflates spray hours when the crew
	// has a single installer instead of the default pair.
	SingleInstallerSurchargePct float64

	RotEligible     bool
	RotPercent      float64
	RotCapPerPerson float64 // kr/person/year
	// RotShares lists the customers' ownership shares (summing to 1).
	// Empty means allocation is unknown: cap at one person's maximum.
	RotShares []float64

	// PartTypeMultipliers adjusts spray time per part type (ceilings
	// and crawl spaces spray slower). Missing entries mean 1.0.
	PartTypeMultipliers map[insulation.PartType]float64
}

// Totals is the aggregate quote roll-up.
type Totals struct {
	TotalArea    float64 `json:"totalArea"`
	ClosedCellKg float64 `json:"closedCellKg"`
	OpenCellKg   float64 `json:"openCellKg"`

	MaterialCost   float64 `json:"materialCost"`
	SprayHours     float64 `json:"sprayHours"`
	SetupHours     float64 `json:"setupHours"`
	TravelHours    float64 `json:"travelHours"`
	SwitchingHours float64 `json:"switchingHours"`
	TotalHours     float64 `json:"totalHours"`
	LaborCost      float64 `json:"laborCost"`
	TravelCost     float64 `json:"travelCost"`
	GeneratorCost  float64 `json:"generatorCost"`

	SingleInstallerApplied bool `json:"singleInstallerApplied"`

	TotalExclVat float64 `json:"totalExclVat"`
	Vat          float64 `json:"vat"`
	TotalInclVat float64 `json:"totalInclVat"`

	RotDeduction  float64 `json:"rotDeduction"`
	RotCapAssumed bool    `json:"rotCapAssumed"`
	FinalTotal    float64 `json:"finalTotal"`

	Parts []PartCost `json:"parts"`
}
