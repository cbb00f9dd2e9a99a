// internal/insulation/solver.go
package insulation

import "math"

// SolveResult is the outcome of the minimum-thickness solve.
// Infeasible results carry 0 mm and an explanation; callers must check
// Feasible instead of assuming a usable thickness.
type SolveResult struct {
	MinClosedCellMm float64
	Feasible        bool
	Explanation     string
}

// MinClosedCellMm solves analytically for the smallest closed-cell
// thickness that keeps the closed/open interface at or above
// dewPoint + safetyMargin, given a fixed open-cell backing.
//
// With A the resistance outside the closed-cell layer and B the
// resistance inside it, the target fraction k of the temperature drop
// gives R_closed = k/(1-k)*B - A.
func MinClosedCellMm(indoorTemp, outdoorTemp, indoorRH, openCellMm, safetyMargin float64, mats Materials) SolveResult {
	deltaT := indoorTemp - outdoorTemp
	if deltaT <= 0 {
		return SolveResult{
			MinClosedCellMm: 0,
			Feasible:        true,
			Explanation:     "Ingen temperaturgradient, ingen kondensrisk.",
		}
	}

	dewPoint := DewPoint(indoorTemp, indoorRH)
	targetTemp := dewPoint + safetyMargin

	k := (targetTemp - outdoorTemp) / deltaT
	if k >= 1 {
		// Target temperature at or above indoor temperature: no amount
		// of insulation can reach it.
		return SolveResult{
			MinClosedCellMm: 0,
			Feasible:        false,
			Explanation:     "Omöjligt att nå måltemperaturen",
		}
	}
	if k <= 0 {
		return SolveResult{
			MinClosedCellMm: 0,
			Feasible:        true,
			Explanation:     "Daggpunkten ligger under utomhustemperaturen, ingen isolering krävs för kondensskydd.",
		}
	}

	a := RSurfaceExterior + RSheathing
	b := ThermalResistance(openCellMm, mats.Open.Lambda) + RGypsum + RSurfaceInterior

	rClosed := math.Max(0, k/(1-k)*b-a)
	mm := rClosed * mats.Closed.Lambda * 1000

	return SolveResult{
		MinClosedCellMm: mm,
		Feasible:        true,
		Explanation:     "Minsta slutencellstjocklek beräknad mot daggpunkt med säkerhetsmarginal.",
	}
}
