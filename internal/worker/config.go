// Package worker runs the optional Pub/Sub refresh trigger. A message on
// the configured subscription runs a dashboard refresh cycle, so a
// scheduler or an upstream publisher can refresh the display remotely.
package worker

import (
	"time"

	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobDashboardRefresh = "dashboard_refresh"
	JobHealthCheck      = "health_check"
)

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string

	// Job runs refresh cycles (required).
	Job *RefreshJob

	// Health reports the dashboard state for health_check jobs (optional).
	Health StateSource

	// MaxOutstandingMessages bounds in-flight messages.
	// Default: 1 (cycles never overlap anyway)
	MaxOutstandingMessages int

	// MaxExtension is how long a message is kept leased.
	// Default: 2 minutes
	MaxExtension time.Duration

	Logger zerolog.Logger
}

// DefaultPubSubConfig returns the defaults for the given subscription.
func DefaultPubSubConfig(projectID, subscription string) PubSubConfig {
	return PubSubConfig{
		ProjectID:              projectID,
		SubscriptionName:       subscription,
		MaxOutstandingMessages: 1,
		MaxExtension:           2 * time.Minute,
		Logger:                 zerolog.Nop(),
	}
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	// Refresher runs one blocking refresh cycle (required).
	Refresher Refresher

	// Timeout bounds one cycle.
	// Default: 30 seconds
	Timeout time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	Logger zerolog.Logger
}
