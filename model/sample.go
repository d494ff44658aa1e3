// model/sample.go
package model

import "time"

// UtilizationSample is one CPU observation for a backend pool.
type UtilizationSample struct {
	PoolID     string        `json:"pool_id"`
	Timestamp  time.Time     `json:"timestamp"`
	CPUPercent float64       `json:"cpu_percent"`
	Window     time.Duration `json:"window"`
}
