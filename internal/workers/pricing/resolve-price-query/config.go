// internal/workers/pricing/resolve-price-query/config.go
package resolvepricequery

import (
	"time"

	"mandi-prices/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// Location anchors relative dates ("today") in structured intents.
	Location *time.Location
}

func LoadConfig(cfg *config.Config) *Config {
	w := config.GetWorkerConfig(cfg, TaskType)
	loc, err := time.LoadLocation(cfg.Resolution.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return &Config{
		Timeout:  config.GetDuration(w.Timeout),
		Location: loc,
	}
}
