// internal/insulation/recommend.go
package insulation

import (
	"fmt"
	"math"
)

// ConfigKind identifies the chosen foam configuration.
type ConfigKind string

const (
	ConfigClosedOnly   ConfigKind = "closed_only"
	ConfigOpenOnly     ConfigKind = "open_only"
	ConfigFlashAndBatt ConfigKind = "flash_and_batt"
)

// Search parameters for the flash-and-batt candidate loop.
const (
	searchStartMm = 40
	searchStepMm  = 5
)

// RecommendInput describes one building part and its site conditions.
type RecommendInput struct {
	PartType          PartType
	HasVaporBarrier   bool
	IndoorTemp        float64
	OutdoorTemp       float64
	IndoorRH          float64
	TargetThicknessMm float64 // 0 means no explicit target
	SafetyMargin      float64 // °C; 0 means use Materials default
}

// Recommendation is the chosen configuration for a part.
type Recommendation struct {
	Config           ConfigKind `json:"config"`
	ClosedCellMm     float64    `json:"closedCellMm"`
	OpenCellMm       float64    `json:"openCellMm"`
	TotalMm          float64    `json:"totalMm"`
	UValue           float64    `json:"uValue"`
	RequiredUValue   float64    `json:"requiredUValue,omitempty"`
	MeetsRequirement bool       `json:"meetsRequirement"`
	Explanation      string     `json:"explanation"`
	Condensation     *Analysis  `json:"condensation,omitempty"`
}

// Recommend selects a foam configuration for a building part.
func Recommend(in RecommendInput, mats Materials) Recommendation {
	margin := in.SafetyMargin
	if margin == 0 {
		margin = mats.SafetyMargin
	}

	// Inner walls have no temperature gradient: open-cell for sound and
	// fill, no physics constraint and no condensation analysis.
	if in.PartType == PartInnerWall || in.IndoorTemp-in.OutdoorTemp <= 0 {
		thickness := in.TargetThicknessMm
		if thickness <= 0 {
			thickness = 100
		}
		rec := Recommendation{
			Config:           ConfigOpenOnly,
			OpenCellMm:       thickness,
			TotalMm:          thickness,
			MeetsRequirement: true,
			Explanation:      "Innervägg utan temperaturgradient: öppencellskum utan kondensberäkning.",
		}
		rec.UValue = assemblyUValue(0, rec.OpenCellMm, mats)
		return rec
	}

	if in.HasVaporBarrier {
		return recommendWithBarrier(in, margin, mats)
	}
	return recommendWithoutBarrier(in, margin, mats)
}

// recommendWithBarrier picks pure open-cell: the existing barrier
// handles vapor control, so only the U-value requirement matters.
func recommendWithBarrier(in RecommendInput, margin float64, mats Materials) Recommendation {
	thickness := in.TargetThicknessMm
	if thickness <= 0 {
		thickness = codeMinimumMm(in.PartType, mats.Open.Lambda, mats)
	}

	rec := Recommendation{
		Config:      ConfigOpenOnly,
		OpenCellMm:  thickness,
		TotalMm:     thickness,
		Explanation: "Befintlig ångspärr hanterar fukttransporten: öppencellskum dimensionerat mot U-kravet.",
	}
	rec.UValue = assemblyUValue(0, thickness, mats)
	rec.RequiredUValue, rec.MeetsRequirement = checkRequirement(in.PartType, rec.UValue, mats)
	rec.Condensation = Analyze(AnalysisInput{
		IndoorTemp:      in.IndoorTemp,
		OutdoorTemp:     in.OutdoorTemp,
		IndoorRH:        in.IndoorRH,
		ThicknessMm:     thickness,
		FoamType:        FoamOpenCell,
		HasVaporBarrier: true,
		SafetyMargin:    margin,
	}, mats)
	return rec
}

// recommendWithoutBarrier is the hard path: search for the smallest
// closed-cell layer that keeps the closed/open interface warm enough,
// and fall back to pure closed-cell when the open remainder is too
// thin to justify the foam switch.
func recommendWithoutBarrier(in RecommendInput, margin float64, mats Materials) Recommendation {
	targetTotal := in.TargetThicknessMm
	if targetTotal <= 0 {
		targetTotal = codeMinimumMm(in.PartType, mats.Closed.Lambda, mats)
	}

	var (
		foundClosed float64
		found       bool
	)

	for c := float64(searchStartMm); c <= targetTotal; c += searchStepMm {
		openCandidate := targetTotal - c
		solve := MinClosedCellMm(in.IndoorTemp, in.OutdoorTemp, in.IndoorRH, openCandidate, margin, mats)
		if !solve.Feasible {
			break
		}
		if c >= solve.MinClosedCellMm {
			foundClosed = c
			found = true
			break
		}
	}

	var rec Recommendation
	if found && targetTotal-foundClosed >= mats.FlashBattMinOpenMm {
		rec = Recommendation{
			Config:       ConfigFlashAndBatt,
			ClosedCellMm: foundClosed,
			OpenCellMm:   targetTotal - foundClosed,
			TotalMm:      targetTotal,
			Explanation: fmt.Sprintf(
				"Flash-and-batt: %.0f mm slutencellskum som ångbroms följt av %.0f mm öppencellskum.",
				foundClosed, targetTotal-foundClosed),
		}
	} else {
		// Either no feasible split or the open remainder is below the
		// cutoff where the added switching labor pays off.
		rec = Recommendation{
			Config:       ConfigClosedOnly,
			ClosedCellMm: targetTotal,
			TotalMm:      targetTotal,
			Explanation: fmt.Sprintf(
				"Slutencellskum i hela tjockleken (%.0f mm): kombinationen med öppencellskum ger ingen fördel här.",
				targetTotal),
		}
	}

	rec.UValue = assemblyUValue(rec.ClosedCellMm, rec.OpenCellMm, mats)
	rec.RequiredUValue, rec.MeetsRequirement = checkRequirement(in.PartType, rec.UValue, mats)
	rec.Condensation = analyzeConfiguration(in, rec, margin, mats)
	return rec
}

// analyzeConfiguration attaches the condensation assessment matching
// the chosen configuration.
func analyzeConfiguration(in RecommendInput, rec Recommendation, margin float64, mats Materials) *Analysis {
	if rec.Config == ConfigClosedOnly {
		return Analyze(AnalysisInput{
			IndoorTemp:      in.IndoorTemp,
			OutdoorTemp:     in.OutdoorTemp,
			IndoorRH:        in.IndoorRH,
			ThicknessMm:     rec.ClosedCellMm,
			FoamType:        FoamClosedCell,
			HasVaporBarrier: in.HasVaporBarrier,
			SafetyMargin:    margin,
		}, mats)
	}

	// Two-layer assembly: assess the closed/open interface directly.
	dewPoint := DewPoint(in.IndoorTemp, in.IndoorRH)
	rClosed := ThermalResistance(rec.ClosedCellMm, mats.Closed.Lambda)
	rOpen := ThermalResistance(rec.OpenCellMm, mats.Open.Lambda)
	rOutside := RSurfaceExterior + RSheathing + rClosed
	rTotal := rOutside + rOpen + RGypsum + RSurfaceInterior

	interfaceTemp := InterfaceTemperature(in.IndoorTemp, in.OutdoorTemp, rOutside, rTotal)
	actualMargin := interfaceTemp - dewPoint

	a := &Analysis{
		DewPoint:      dewPoint,
		InterfaceTemp: interfaceTemp,
		SafetyMargin:  actualMargin,
	}
	if actualMargin >= margin {
		a.Risk = RiskLow
		a.Explanation = fmt.Sprintf(
			"Skiktgränsen håller %.1f°C, %.1f°C över daggpunkten %.1f°C.",
			interfaceTemp, actualMargin, dewPoint)
	} else {
		a.Risk = RiskHigh
		a.Explanation = fmt.Sprintf(
			"Skiktgränsen %.1f°C ligger för nära daggpunkten %.1f°C.",
			interfaceTemp, dewPoint)
	}
	return a
}

// codeMinimumMm computes the code-minimum thickness for a single foam
// against the part's maximum U-value, with 10% headroom, rounded up to
// the nearest 10 mm.
func codeMinimumMm(part PartType, lambda float64, mats Materials) float64 {
	uMax, ok := mats.UMax[part]
	if !ok || uMax <= 0 {
		return 100
	}
	mm := lambda * (1/uMax - RSurfaceInterior - RSurfaceExterior) * 1000 * 1.1
	return math.Ceil(mm/10) * 10
}

// assemblyUValue computes the U-value of the chosen foam layers plus
// the surface-resistance allowances.
func assemblyUValue(closedMm, openMm float64, mats Materials) float64 {
	r := RSurfaceInterior + RSurfaceExterior +
		ThermalResistance(closedMm, mats.Closed.Lambda) +
		ThermalResistance(openMm, mats.Open.Lambda)
	if r <= 0 {
		return 0
	}
	return 1 / r
}

// checkRequirement looks up the building-code U-max for the part.
// Parts without a requirement always pass.
func checkRequirement(part PartType, uValue float64, mats Materials) (float64, bool) {
	uMax, ok := mats.UMax[part]
	if !ok || uMax <= 0 {
		return 0, true
	}
	return uMax, uValue <= uMax
}
