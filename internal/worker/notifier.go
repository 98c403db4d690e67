package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

const notifyTimeout = 10 * time.Second

// Notifier announces finished jobs to other services
type Notifier interface {
	NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error
}

// JSONPublisher publishes a value as a JSON message
type JSONPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// BrokerNotifier publishes completion events through a message broker client
type BrokerNotifier struct {
	client JSONPublisher
}

// NewBrokerNotifier creates a notifier backed by client, typically a *rabbitmq.Client
func NewBrokerNotifier(client JSONPublisher) *BrokerNotifier {
	return &BrokerNotifier{client: client}
}

func (n *BrokerNotifier) NotifyCompletion(ctx context.Context, ev domain.CompletionEvent) error {
	if err := n.client.PublishJSON(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}
	return nil
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) NotifyCompletion(context.Context, domain.CompletionEvent) error { return nil }

// notify runs after the terminal event, so a broker outage never changes the job outcome
func (m *Manager) notify(ev domain.CompletionEvent, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := m.notifier.NotifyCompletion(ctx, ev); err != nil {
		logger.Warn("Failed to send completion notification", slog.String("error", err.Error()))
		return
	}
	logger.Debug("Completion notification sent", slog.String("status", ev.Status))
}
