// internal/insulation/physics.go
package insulation

import "math"

// Fixed series resistances for the assembly around the foam layers,
// m²K/W. Exterior air film, exterior sheathing, interior gypsum board
// and interior air film.
const (
	RSurfaceExterior = 0.04
	RSheathing       = 0.12
	RGypsum          = 0.06
	RSurfaceInterior = 0.13
)

// SaturationVaporPressure returns the saturation vapor pressure in Pa
// at temperature t (°C) using the Magnus formula. Valid for
// t > -243.12°C.
func SaturationVaporPressure(t float64) float64 {
	return 611.2 * math.Exp(17.62*t/(243.12+t))
}

// DewPoint returns the dew-point temperature (°C) for air at
// temperature t (°C) and relative humidity rh (%). rh must be in
// (0, 100]; rh = 0 is undefined and must be guarded by the caller.
func DewPoint(t, rh float64) float64 {
	alpha := math.Log(rh/100) + 17.62*t/(243.12+t)
	return 243.12 * alpha / (17.62 - alpha)
}

// ThermalResistance returns the resistance of a layer in m²K/W given
// its thickness in mm and conductivity lambda in W/(m·K).
func ThermalResistance(thicknessMm, lambda float64) float64 {
	return (thicknessMm / 1000) / lambda
}

// InterfaceTemperature returns the temperature at a point in the
// assembly where rOutside is the series resistance from the outdoor
// air up to that point and rTotal the full assembly resistance.
// Temperature varies linearly with resistance fraction.
func InterfaceTemperature(indoorTemp, outdoorTemp, rOutside, rTotal float64) float64 {
	if rTotal <= 0 {
		return outdoorTemp
	}
	return outdoorTemp + (rOutside/rTotal)*(indoorTemp-outdoorTemp)
}
