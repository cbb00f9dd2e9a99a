// internal/workers/booking/auto-assign-installers/config.go
package autoassigninstallers

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
