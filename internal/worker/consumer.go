package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oidanice/tscribe/internal/domain"
)

// setupConsumer configures QoS and starts consuming job messages.
// Prefetch equals the number of processing slots so the broker never
// hands this process more jobs than it can hold: the dequeue-exclusivity
// invariant is the broker's unacked-delivery semantics plus this cap.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(w.concurrency, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Queue consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch", w.concurrency),
	)

	return deliveries, nil
}

// dispatch reads deliveries and hands validated job messages to the
// processing slots. It returns nil when ctx is cancelled or stop is
// requested, and ErrConsumerClosed when the delivery channel closes
// underneath it.
func (w *Worker) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatcher stopped: context cancelled")
			return nil

		case <-w.stopChan:
			w.logger.Info("Dispatcher stopped: shutdown requested")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Error("Delivery channel closed unexpectedly")
				return ErrConsumerClosed
			}

			msg, err := decodeJobMessage(delivery)
			if err != nil {
				w.logger.Error("Discarding malformed job message",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages can never succeed; drop without
				// requeue so they do not loop forever.
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- task{msg: msg, delivery: delivery}:

			case <-w.stopChan:
				// Shutting down with an undispatched delivery in hand:
				// requeue it so another worker picks it up.
				w.requeue(delivery)
				return nil

			case <-ctx.Done():
				w.requeue(delivery)
				return nil
			}
		}
	}
}

func (w *Worker) requeue(delivery amqp.Delivery) {
	if err := delivery.Nack(false, true); err != nil {
		w.logger.Error("Failed to requeue message on shutdown",
			slog.Any("error", err),
		)
	}
}

// decodeJobMessage validates a queue delivery into a job message
func decodeJobMessage(delivery amqp.Delivery) (*domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("job_id is not a valid UUID: %w", err)
	}

	return &msg, nil
}
