package models

// ConsoleStats is the resource usage pushed by the daemon in "stats" events.
type ConsoleStats struct {
	MemoryBytes      int64         `json:"memory_bytes"`
	MemoryLimitBytes int64         `json:"memory_limit_bytes"`
	CPUAbsolute      float64       `json:"cpu_absolute"`
	DiskBytes        int64         `json:"disk_bytes"`
	Network          NetworkTotals `json:"network"`
	State            string        `json:"state,omitempty"`
	Uptime           int64         `json:"uptime"` // milliseconds
}

type NetworkTotals struct {
	RxBytes int64 `json:"rx_bytes"`
	TxBytes int64 `json:"tx_bytes"`
}
