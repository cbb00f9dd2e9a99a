// internal/insulation/condensation.go
package insulation

import "fmt"

// RiskLevel classifies condensation risk.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Air-tightness floor for closed-cell foam. Below this thickness the
// layer cannot be assumed continuous, independent of dew-point math.
const closedCellMinimumMm = 40

// Open-cell with a vapor barrier below this thickness is flagged as
// thin (medium risk).
const openCellThinMm = 100

// AnalysisInput describes one foam layer configuration to assess.
type AnalysisInput struct {
	IndoorTemp      float64
	OutdoorTemp     float64
	IndoorRH        float64
	ThicknessMm     float64
	FoamType        FoamType
	HasVaporBarrier bool
	SafetyMargin    float64 // °C; 0 means use Materials default
}

// Analysis is the structured condensation assessment. Explanations are
// customer-facing Swedish.
type Analysis struct {
	Risk            RiskLevel `json:"risk"`
	DewPoint        float64   `json:"dewPoint"`
	InterfaceTemp   float64   `json:"interfaceTemp"`
	SafetyMargin    float64   `json:"safetyMargin"`
	CriticalDepthMm float64   `json:"criticalDepthMm"`
	Explanation     string    `json:"explanation"`
}

// Analyze classifies condensation risk for a single-foam configuration.
// Returns nil when there is no temperature gradient (inner walls); such
// parts carry no condensation analysis at all.
func Analyze(in AnalysisInput, mats Materials) *Analysis {
	if in.IndoorTemp-in.OutdoorTemp <= 0 {
		return nil
	}

	margin := in.SafetyMargin
	if margin == 0 {
		margin = mats.SafetyMargin
	}

	dewPoint := DewPoint(in.IndoorTemp, in.IndoorRH)

	switch in.FoamType {
	case FoamClosedCell:
		return analyzeClosedCell(in, dewPoint, margin, mats)
	case FoamOpenCell:
		return analyzeOpenCell(in, dewPoint, margin, mats)
	default:
		return &Analysis{
			Risk:        RiskUnknown,
			DewPoint:    dewPoint,
			Explanation: fmt.Sprintf("Okänd isoleringstyp: %s", in.FoamType),
		}
	}
}

// analyzeClosedCell assesses the interior-facing surface of the
// closed-cell layer against the dew point.
func analyzeClosedCell(in AnalysisInput, dewPoint, margin float64, mats Materials) *Analysis {
	rClosed := ThermalResistance(in.ThicknessMm, mats.Closed.Lambda)
	rOutside := RSurfaceExterior + RSheathing + rClosed
	rTotal := rOutside + RGypsum + RSurfaceInterior

	interfaceTemp := InterfaceTemperature(in.IndoorTemp, in.OutdoorTemp, rOutside, rTotal)
	actualMargin := interfaceTemp - dewPoint

	solve := MinClosedCellMm(in.IndoorTemp, in.OutdoorTemp, in.IndoorRH, 0, margin, mats)

	a := &Analysis{
		DewPoint:        dewPoint,
		InterfaceTemp:   interfaceTemp,
		SafetyMargin:    actualMargin,
		CriticalDepthMm: solve.MinClosedCellMm,
	}

	switch {
	case in.ThicknessMm < closedCellMinimumMm:
		// Hard floor: enforced regardless of what the dew-point
		// calculation says about thinner layers.
		a.Risk = RiskHigh
		a.Explanation = fmt.Sprintf(
			"Slutencellskum under %d mm ger hög kondensrisk oavsett daggpunktsberäkningen: skiktet kan inte garanteras lufttätt.",
			closedCellMinimumMm)

	case solve.Feasible && in.ThicknessMm < solve.MinClosedCellMm:
		a.Risk = RiskHigh
		a.Explanation = fmt.Sprintf(
			"Ytterytans temperatur %.1f°C ligger för nära daggpunkten %.1f°C. Minst %.0f mm slutencellskum krävs, %.0f mm saknas.",
			interfaceTemp, dewPoint, solve.MinClosedCellMm, solve.MinClosedCellMm-in.ThicknessMm)

	default:
		a.Risk = RiskLow
		a.Explanation = fmt.Sprintf(
			"Ytterytans temperatur %.1f°C ligger %.1f°C över daggpunkten %.1f°C. Säkerhetsmarginalen är uppnådd.",
			interfaceTemp, actualMargin, dewPoint)
	}

	return a
}

// analyzeOpenCell applies the policy rules for open-cell foam. The
// interface temperature reported is the cold-side surface of the foam.
func analyzeOpenCell(in AnalysisInput, dewPoint, margin float64, mats Materials) *Analysis {
	rOpen := ThermalResistance(in.ThicknessMm, mats.Open.Lambda)
	rOutside := RSurfaceExterior + RSheathing
	rTotal := rOutside + rOpen + RGypsum + RSurfaceInterior

	surfaceTemp := InterfaceTemperature(in.IndoorTemp, in.OutdoorTemp, rOutside, rTotal)
	actualMargin := surfaceTemp - dewPoint

	a := &Analysis{
		DewPoint:      dewPoint,
		InterfaceTemp: surfaceTemp,
		SafetyMargin:  actualMargin,
	}

	if !in.HasVaporBarrier {
		// Open-cell foam has negligible vapor resistance: indoor
		// moisture reaches the cold surface regardless of thickness.
		a.Risk = RiskHigh
		a.CriticalDepthMm = 0
		a.Explanation = "Öppencellskum utan ångspärr ger hög kondensrisk: fukt från inomhusluften når kalla ytor oavsett tjocklek."
		return a
	}

	if in.ThicknessMm < openCellThinMm {
		a.Risk = RiskMedium
		a.Explanation = fmt.Sprintf(
			"Öppencellskum under %d mm med ångspärr ger måttlig kondensrisk. Överväg mer isolering eller flash-and-batt.",
			openCellThinMm)
	} else {
		a.Risk = RiskLow
		a.Explanation = "Öppencellskum med ångspärr och tillräcklig tjocklek. Låg kondensrisk."
	}

	return a
}
