package models

import "time"

// RatelimitConfig is the stored per-IP rate for the HTTP edge limiter.
// Rate uses the "count-period" format, e.g. "5-S", "100-M".
type RatelimitConfig struct {
	ConfigKey string    `json:"configKey"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
