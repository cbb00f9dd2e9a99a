// internal/settings/source.go
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/026iFly/foam-sub000/internal/common/logger"
	"github.com/026iFly/foam-sub000/internal/costing"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "calculation:variables"

// Defaults documents the fallback value for every variable the
// calculations read. A missing row in the variable table means the
// default applies; an unknown row is passed through untouched (the
// physics layer resolves its own override keys).
var Defaults = map[string]float64{
	"closed_density":       38,
	"closed_lambda":        0.022,
	"closed_sd":            3.0,
	"closed_material_cost": 55,
	"closed_margin":        20,
	"closed_spray_time":    1.5,

	"open_density":       8,
	"open_lambda":        0.038,
	"open_sd":            0.1,
	"open_material_cost": 30,
	"open_margin":        20,
	"open_spray_time":    1.0,

	"setup_hours":             2,
	"personnel_cost_per_hour": 500,
	"generator_cost":          800,
	"travel_hours":            1.5,
	"travel_cost":             600,

	"u_max_yttervagg": 0.18,
	"u_max_tak":       0.13,
	"u_max_golv":      0.15,

	"condensation_safety_margin":     2.0,
	"flash_batt_min_open_mm":         50,
	"rot_cap_per_person":             50000,
	"single_installer_surcharge_pct": 30,
}

// Source reads calculation variables from Postgres with a Redis
// read-through cache. Cache failures are logged and absorbed; only a
// failed database query is surfaced.
type Source struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewSource(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Source {
	return &Source{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// GetAll returns the persisted variables merged over Defaults.
func (s *Source) GetAll(ctx context.Context) (map[string]float64, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return merge(cached), nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM calculation_variables`)
	if err != nil {
		return nil, fmt.Errorf("query calculation variables: %w", err)
	}
	defer rows.Close()

	stored := map[string]float64{}
	for rows.Next() {
		var (
			key   string
			value float64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan calculation variable: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read calculation variables: %w", err)
	}

	s.toCache(ctx, stored)
	return merge(stored), nil
}

// Value looks a key up in a resolved variable map, falling back to the
// documented default.
func Value(vars map[string]float64, key string) float64 {
	if v, ok := vars[key]; ok {
		return v
	}
	return Defaults[key]
}

// CostVariables assembles the rollup input from the variable map.
func CostVariables(vars map[string]float64) costing.CostVariables {
	return costing.CostVariables{
		ClosedDensity:        Value(vars, "closed_density"),
		ClosedMaterialCost:   Value(vars, "closed_material_cost"),
		ClosedMarginPct:      Value(vars, "closed_margin"),
		ClosedSprayTimePerM3: Value(vars, "closed_spray_time"),

		OpenDensity:        Value(vars, "open_density"),
		OpenMaterialCost:   Value(vars, "open_material_cost"),
		OpenMarginPct:      Value(vars, "open_margin"),
		OpenSprayTimePerM3: Value(vars, "open_spray_time"),

		SetupHours:           Value(vars, "setup_hours"),
		PersonnelCostPerHour: Value(vars, "personnel_cost_per_hour"),
		GeneratorCost:        Value(vars, "generator_cost"),
		TravelHours:          Value(vars, "travel_hours"),
		TravelCost:           Value(vars, "travel_cost"),
	}
}

func (s *Source) fromCache(ctx context.Context) map[string]float64 {
	if s.redis == nil {
		return nil
	}

	val, err := s.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("variable cache read failed", map[string]interface{}{"error": err})
		}
		return nil
	}

	var stored map[string]float64
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		s.logger.Warn("variable cache entry corrupt", map[string]interface{}{"error": err})
		return nil
	}
	return stored
}

func (s *Source) toCache(ctx context.Context, stored map[string]float64) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("variable cache write failed", map[string]interface{}{"error": err})
	}
}

func merge(stored map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(Defaults)+len(stored))
	for k, v := range Defaults {
		out[k] = v
	}
	for k, v := range stored {
		out[k] = v
	}
	return out
}
