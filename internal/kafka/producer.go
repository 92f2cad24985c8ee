// Package kafka publishes encoded records and rejected rows to Kafka.
package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// ProducerConfig contains sync producer settings.
type ProducerConfig struct {
	Brokers         []string
	ClientID        string
	RequiredAcks    int
	Compression     string
	Idempotent      bool
	RetryMax        int
	RetryBackoff    time.Duration
	MaxMessageBytes int
	Security        SecurityConfig
}

// NewSaramaConfig builds a sarama config for a sync producer.
func NewSaramaConfig(cfg ProducerConfig) (*sarama.Config, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	config.Producer.Compression = compressionCodec(cfg.Compression)
	if cfg.RetryMax > 0 {
		config.Producer.Retry.Max = cfg.RetryMax
	}
	if cfg.RetryBackoff > 0 {
		config.Producer.Retry.Backoff = cfg.RetryBackoff
	}
	if cfg.MaxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	// Idempotent producer requires Net.MaxOpenRequests to be 1
	if cfg.Idempotent {
		config.Producer.Idempotent = true
		config.Producer.RequiredAcks = sarama.WaitForAll
		config.Net.MaxOpenRequests = 1
	}

	if err := configureSecurity(config, cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}

	return config, nil
}

// NewSyncProducer connects a sync producer to the brokers.
func NewSyncProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	config, err := NewSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}
	return producer, nil
}

func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
