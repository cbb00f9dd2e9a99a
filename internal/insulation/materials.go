// internal/insulation/materials.go
package insulation

import "fmt"

// FoamType identifies a spray-foam variant.
type FoamType string

const (
	FoamClosedCell FoamType = "closed_cell"
	FoamOpenCell   FoamType = "open_cell"
)

// PartType identifies the building part being insulated (Swedish labels
// match the building-code table).
type PartType string

const (
	PartOuterWall PartType = "yttervagg"
	PartRoof      PartType = "tak"
	PartFloor     PartType = "golv"
	PartInnerWall PartType = "innervagg"
)

// FoamProperties holds the physical properties of one foam variant.
type FoamProperties struct {
	Lambda  float64 // thermal conductivity, W/(m·K)
	SdValue float64 // vapor diffusion resistance, m (informational)
	Density float64 // kg/m³
}

// Materials bundles foam properties, code requirements and tuning
// parameters for a single calculation. Callers construct one from
// DefaultMaterials and optionally apply persisted overrides.
type Materials struct {
	Closed FoamProperties
	Open   FoamProperties

	// UMax maps part type to the building-code maximum U-value (W/m²K).
	// Inner walls have no requirement and are absent.
	UMax map[PartType]float64

	// SafetyMargin is the required buffer between interface temperature
	// and dew point, °C.
	SafetyMargin float64

	// FlashBattMinOpenMm is the smallest open-cell remainder that
	// justifies a two-layer configuration.
	FlashBattMinOpenMm float64
}

// DefaultMaterials returns the hard-coded property set.
func DefaultMaterials() Materials {
	return Materials{
		Closed: FoamProperties{Lambda: 0.022, SdValue: 3.0, Density: 38},
		Open:   FoamProperties{Lambda: 0.038, SdValue: 0.1, Density: 8},
		UMax: map[PartType]float64{
			PartOuterWall: 0.18,
			PartRoof:      0.13,
			PartFloor:     0.15,
		},
		SafetyMargin:       2.0,
		FlashBattMinOpenMm: 50,
	}
}

// ApplyOverrides replaces individual properties from a persisted
// key/value variable table. Overrides that would break the material
// invariants (closed-cell insulates better per mm, open-cell is
// lighter) are rejected and reported back as warnings; the default is
// kept in that case.
func (m *Materials) ApplyOverrides(vars map[string]float64) []string {
	var warnings []string

	apply := func(key string, target *float64) {
		if v, ok := vars[key]; ok && v > 0 {
			*target = v
		}
	}

	candidate := *m
	apply("closed_lambda", &candidate.Closed.Lambda)
	apply("closed_sd", &candidate.Closed.SdValue)
	apply("closed_density", &candidate.Closed.Density)
	apply("open_lambda", &candidate.Open.Lambda)
	apply("open_sd", &candidate.Open.SdValue)
	apply("open_density", &candidate.Open.Density)

	if candidate.Closed.Lambda >= candidate.Open.Lambda {
		warnings = append(warnings, fmt.Sprintf(
			"lambda override rejected: closed-cell lambda %.4f must stay below open-cell lambda %.4f",
			candidate.Closed.Lambda, candidate.Open.Lambda))
		candidate.Closed.Lambda = m.Closed.Lambda
		candidate.Open.Lambda = m.Open.Lambda
	}
	if candidate.Closed.Density <= candidate.Open.Density {
		warnings = append(warnings, fmt.Sprintf(
			"density override rejected: closed-cell density %.1f must stay above open-cell density %.1f",
			candidate.Closed.Density, candidate.Open.Density))
		candidate.Closed.Density = m.Closed.Density
		candidate.Open.Density = m.Open.Density
	}

	candidate.UMax = map[PartType]float64{}
	for k, v := range m.UMax {
		candidate.UMax[k] = v
	}
	uMaxKeys := map[string]PartType{
		"u_max_yttervagg": PartOuterWall,
		"u_max_tak":       PartRoof,
		"u_max_golv":      PartFloor,
	}
	for key, part := range uMaxKeys {
		if v, ok := vars[key]; ok && v > 0 {
			candidate.UMax[part] = v
		}
	}

	apply("condensation_safety_margin", &candidate.SafetyMargin)
	apply("flash_batt_min_open_mm", &candidate.FlashBattMinOpenMm)

	*m = candidate
	return warnings
}
