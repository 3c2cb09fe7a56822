package models

import "github.com/tokyotraffic/tokyotraffic/internal/ridership"

// SnapshotResponse is returned by GET /api/snapshot.
type SnapshotResponse struct {
	State     string              `json:"state"`
	Snapshot  *ridership.Snapshot `json:"snapshot"`
	UpdatedAt Timestamp           `json:"updatedAt"`
}

// ClockResponse is returned by GET /api/clock.
type ClockResponse struct {
	Time string `json:"time"`
}

// RefreshAccepted is returned when a refresh cycle was started.
type RefreshAccepted struct {
	State   string `json:"state"`
	Message string `json:"message"`
}
