package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
)

const defaultRefreshTimeout = 30 * time.Second

// Refresher runs one blocking dashboard refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StateSource reports the dashboard lifecycle state.
type StateSource interface {
	State() dashboard.State
}

// Refresh outcomes.
const (
	OutcomeRefreshed = "refreshed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// RefreshResult is the outcome of one remote refresh.
type RefreshResult struct {
	StartTime time.Time
	Duration  time.Duration
	Outcome   string
	Err       error
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	TotalRuns int64
	Refreshed int64
	Skipped   int64
	Failed    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastError       string
}

// RefreshJob runs dashboard refreshes on behalf of remote triggers.
type RefreshJob struct {
	refresher Refresher
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.RWMutex
	metrics RefreshMetrics
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RefreshJob{
		refresher: cfg.Refresher,
		timeout:   timeout,
		now:       now,
		logger:    cfg.Logger,
	}
}

// Run performs one refresh. A cycle already in progress counts as skipped,
// not failed: the running cycle delivers the fresh data.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result := &RefreshResult{StartTime: j.now()}
	err := j.refresher.Refresh(ctx)
	result.Duration = j.now().Sub(result.StartTime)

	switch {
	case err == nil:
		result.Outcome = OutcomeRefreshed
	case errors.Is(err, dashboard.ErrCycleInProgress):
		result.Outcome = OutcomeSkipped
	default:
		result.Outcome = OutcomeFailed
		result.Err = err
	}

	j.record(result)

	j.logger.Info().
		Str("outcome", result.Outcome).
		Dur("duration", result.Duration).
		Err(result.Err).
		Msg("remote refresh finished")

	return result
}

func (j *RefreshJob) record(result *RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	switch result.Outcome {
	case OutcomeRefreshed:
		j.metrics.Refreshed++
	case OutcomeSkipped:
		j.metrics.Skipped++
	case OutcomeFailed:
		j.metrics.Failed++
		j.metrics.LastError = result.Err.Error()
	}
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}
