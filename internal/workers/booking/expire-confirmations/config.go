// internal/workers/booking/expire-confirmations/config.go
package expireconfirmations

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
