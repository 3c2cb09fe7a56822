package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Dashboard DashboardStatus  `json:"dashboard"`
	Providers []ProviderStatus `json:"providers"`
}

// DashboardStatus summarizes the dashboard controller.
type DashboardStatus struct {
	State      string     `json:"state"`
	Busy       bool       `json:"busy"`
	SnapshotID string     `json:"snapshotId,omitempty"`
	BuiltAt    *Timestamp `json:"builtAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ProviderStatus represents the status of an upstream host.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
