package kafka

import (
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"

	"github.com/IBM/sarama"
)

// PrintStatusHandler is exported for testing purposes
type PrintStatusHandler struct {
	Handler func(*models.PrintStatusEvent) error
	Store   storage.Store
}

// ConsumeClaim processes Kafka messages
func (h *PrintStatusHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return (&printStatusHandler{
		handler: h.Handler,
		store:   h.Store,
	}).ConsumeClaim(session, claim)
}

// Setup is called before consuming starts
func (h *PrintStatusHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called after consuming ends
func (h *PrintStatusHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}
