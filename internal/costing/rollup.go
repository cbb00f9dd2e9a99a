// internal/costing/rollup.go
package costing

import (
	"math"

	"github.com/026iFly/foam-sub000/internal/insulation"
)

// Swedish VAT on construction work is a flat 25%.
const vatRate = 0.25

// One foam-gun changeover per two-layer part.
const switchingHoursPerPart = 1.0

// Rollup computes material, labor, VAT and ROT totals for a set of
// part recommendations. Labor cost is distributed back to parts by
// their share of spray hours, since setup, travel and switching time
// are shared across the job.
func Rollup(parts []PartInput, vars CostVariables, opts RollupOptions) Totals {
	if opts.DefaultCrewSize == 0 {
		opts.DefaultCrewSize = 2
	}
	if opts.SingleInstallerSurchargePct == 0 {
		opts.SingleInstallerSurchargePct = 30
	}
	if opts.RotPercent == 0 {
		opts.RotPercent = 30
	}
	if opts.RotCapPerPerson == 0 {
		opts.RotCapPerPerson = 50000
	}

	totals := Totals{
		SetupHours:    vars.SetupHours,
		TravelHours:   vars.TravelHours,
		TravelCost:    vars.TravelCost,
		GeneratorCost: vars.GeneratorCost,
	}

	partCosts := make([]PartCost, 0, len(parts))
	for _, p := range parts {
		pc := partCost(p, vars, opts)
		totals.TotalArea += p.Area
		totals.ClosedCellKg += pc.ClosedCellKg
		totals.OpenCellKg += pc.OpenCellKg
		totals.MaterialCost += pc.MaterialCost
		totals.SprayHours += pc.SprayHours
		if p.Config == insulation.ConfigFlashAndBatt {
			totals.SwitchingHours += switchingHoursPerPart
		}
		partCosts = append(partCosts, pc)
	}

	// A lone installer sprays slower than the standard crew.
	if opts.CrewSize == 1 && opts.DefaultCrewSize > 1 {
		totals.SprayHours *= 1 + opts.SingleInstallerSurchargePct/100
		totals.SingleInstallerApplied = true
	}

	totals.TotalHours = totals.SprayHours + totals.SetupHours + totals.TravelHours + totals.SwitchingHours
	totals.LaborCost = totals.TotalHours * vars.PersonnelCostPerHour

	distributeLabor(partCosts, totals.LaborCost)

	totals.TotalExclVat = totals.MaterialCost + totals.LaborCost + totals.TravelCost + totals.GeneratorCost
	totals.Vat = totals.TotalExclVat * vatRate
	totals.TotalInclVat = math.Round(totals.TotalExclVat * (1 + vatRate))

	if opts.RotEligible {
		totals.RotDeduction, totals.RotCapAssumed = rotDeduction(totals.LaborCost, opts)
	}
	totals.FinalTotal = totals.TotalInclVat - totals.RotDeduction

	totals.Parts = partCosts
	return totals
}

// partCost computes material quantities and unshared spray time for a
// single part.
func partCost(p PartInput, vars CostVariables, opts RollupOptions) PartCost {
	closedVolume := p.Area * p.ClosedCellMm / 1000
	openVolume := p.Area * p.OpenCellMm / 1000

	pc := PartCost{
		PartID:       p.PartID,
		ClosedCellKg: closedVolume * vars.ClosedDensity,
		OpenCellKg:   openVolume * vars.OpenDensity,
	}

	pc.MaterialCost = pc.ClosedCellKg*vars.ClosedMaterialCost*(1+vars.ClosedMarginPct/100) +
		pc.OpenCellKg*vars.OpenMaterialCost*(1+vars.OpenMarginPct/100)

	multiplier := 1.0
	if m, ok := opts.PartTypeMultipliers[p.PartType]; ok && m > 0 {
		multiplier = m
	}
	pc.SprayHours = (closedVolume*vars.ClosedSprayTimePerM3 + openVolume*vars.OpenSprayTimePerM3) * multiplier

	return pc
}

// distributeLabor splits the shared labor cost across parts in
// proportion to each part's spray hours.
func distributeLabor(parts []PartCost, laborCost float64) {
	var totalSpray float64
	for _, p := range parts {
		totalSpray += p.SprayHours
	}
	if totalSpray <= 0 {
		return
	}

	for i := range parts {
		parts[i].LaborCost = laborCost * parts[i].SprayHours / totalSpray
		parts[i].TotalCost = parts[i].MaterialCost + parts[i].LaborCost
	}
}

// rotDeduction applies the Swedish ROT labor rebate: a percentage of
// labor cost including VAT, capped per person by ownership share. With
// no share information the cap falls back to a single person's
// maximum, the conservative assumption.
func rotDeduction(laborCost float64, opts RollupOptions) (float64, bool) {
	laborInclVat := laborCost * (1 + vatRate)
	base := opts.RotPercent / 100 * laborInclVat

	capSum := 0.0
	capAssumed := false
	if len(opts.RotShares) == 0 {
		capSum = opts.RotCapPerPerson
		capAssumed = true
	} else {
		for _, share := range opts.RotShares {
			capSum += opts.RotCapPerPerson * share
		}
	}

	return math.Round(math.Min(base, capSum)), capAssumed
}
