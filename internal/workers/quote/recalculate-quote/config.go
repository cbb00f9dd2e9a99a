// internal/workers/quote/recalculate-quote/config.go
package recalculatequote

import (
	"time"

	"github.com/026iFly/foam-sub000/internal/insulation"
)

type Config struct {
	Timeout    time.Duration
	CacheTTL   time.Duration
	QuoteIndex string

	DefaultIndoorTemp float64
	DefaultIndoorRH   float64
	DefaultZone       string
	// ZoneOutdoorTemp maps Swedish climate zones to their design
	// outdoor temperatures.
	ZoneOutdoorTemp map[string]float64

	DefaultCrewSize     int
	RotPercent          float64
	PartTypeMultipliers map[insulation.PartType]float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           10 * time.Second,
		CacheTTL:          5 * time.Minute,
		QuoteIndex:        "quotes",
		DefaultIndoorTemp: 21,
		DefaultIndoorRH:   40,
		DefaultZone:       "II",
		ZoneOutdoorTemp: map[string]float64{
			"I":   -16,
			"II":  -20,
			"III": -24,
		},
		DefaultCrewSize: 2,
		RotPercent:      30,
		PartTypeMultipliers: map[insulation.PartType]float64{
			insulation.PartRoof:  1.2,
			insulation.PartFloor: 1.1,
		},
	}
}
