package client

import (
	"time"

	"github.com/urolovforever/Brand-Store/internal/config"

	"github.com/segmentio/kafka-go"
)

func NewKafkaWriter(cfg config.Kafka) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // events of one order stay ordered
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
}
