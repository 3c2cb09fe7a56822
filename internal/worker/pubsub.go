package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Message is the body of a trigger message.
type Message struct {
	JobType string `json:"job_type"`
}

// PubSubHandler receives trigger messages and dispatches them.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.Job == nil {
		return nil, fmt.Errorf("pubsub handler: refresh job is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	defaults := DefaultPubSubConfig(cfg.ProjectID, cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = defaults.MaxOutstandingMessages
	if cfg.MaxOutstandingMessages > 0 {
		subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	subscriber.ReceiveSettings.MaxExtension = defaults.MaxExtension
	if cfg.MaxExtension > 0 {
		subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension
	}

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Job, cfg.Health, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub refresh trigger")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.dispatcher.Dispatch(logger.WithContext(ctx), msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Dispatcher decides what a trigger message does and whether it is acked.
type Dispatcher struct {
	job    *RefreshJob
	health StateSource
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher; health may be nil.
func NewDispatcher(job *RefreshJob, health StateSource, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, health: health, logger: logger}
}

// Dispatch handles one message body and reports whether to ack it.
// Malformed and unknown messages are acked so they are not redelivered;
// a failed refresh is nacked for a later retry.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) bool {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &d.logger
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse trigger message")
		return true
	}

	switch msg.JobType {
	case JobDashboardRefresh:
		result := d.job.Run(ctx)
		return result.Outcome != OutcomeFailed
	case JobHealthCheck:
		if err := d.healthCheck(); err != nil {
			logger.Warn().Err(err).Msg("health check failed")
			return false
		}
		return true
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}
}

func (d *Dispatcher) healthCheck() error {
	if d.health == nil {
		return nil
	}
	if state := d.health.State(); !state.HasSnapshot() && !state.InProgress() {
		return fmt.Errorf("dashboard has no snapshot (state %s)", state)
	}
	return nil
}
