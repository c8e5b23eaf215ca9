package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

// Consumer ingests print job status reports published by the kiosk print
// agents.
type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	store    storage.Store
}

func NewPrintStatusConsumer(brokers []string, groupID string, store storage.Store) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	topics := []string{"print-job-status"}

	return &Consumer{
		consumer: consumer,
		topics:   topics,
		store:    store,
	}, nil
}

// ConsumePrintStatuses blocks until ctx is cancelled. The optional handler
// runs after the job row has been updated.
func (c *Consumer) ConsumePrintStatuses(ctx context.Context, handler func(*models.PrintStatusEvent) error) error {
	consumerHandler := &printStatusHandler{handler: handler, store: c.store}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
				log.Printf("Error consuming messages: %v", err)
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

type printStatusHandler struct {
	handler func(*models.PrintStatusEvent) error
	store   storage.Store
}

func (h *printStatusHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *printStatusHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *printStatusHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.PrintStatusEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("Failed to unmarshal print status message: %v", err)
			continue
		}

		if err := h.applyStatus(&event); err != nil {
			log.Printf("Failed to apply print status event: %v", err)
			continue
		}

		if h.handler != nil {
			if err := h.handler(&event); err != nil {
				log.Printf("Failed to handle print status event: %v", err)
				continue
			}
		}

		session.MarkMessage(message, "")
	}

	return nil
}

func (h *printStatusHandler) applyStatus(event *models.PrintStatusEvent) error {
	if h.store == nil {
		return nil
	}
	if event.Status != models.PrintPrinted && event.Status != models.PrintFailed {
		return fmt.Errorf("unexpected print status %q for job %s", event.Status, event.JobID)
	}

	job, err := h.store.GetPrintJob(event.JobID)
	if err != nil {
		return err
	}

	job.Status = event.Status
	job.Error = event.Error
	job.UpdatedAt = time.Now()
	return h.store.UpdatePrintJob(job)
}
