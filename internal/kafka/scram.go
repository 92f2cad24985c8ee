package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

var _ sarama.SCRAMClient = (*scramClient)(nil)

// scramClient drives one xdg-go/scram conversation for a sarama broker connection.
type scramClient struct {
	hash scram.HashGeneratorFcn
	conv *scram.ClientConversation
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hash.NewClient(userName, password, authzID)
	if err != nil {
		return fmt.Errorf("failed to create scram client: %w", err)
	}
	c.conv = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	if c.conv == nil {
		return "", fmt.Errorf("scram conversation not started")
	}
	return c.conv.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conv != nil && c.conv.Done()
}

// scramClientGenerator returns the sarama client factory and the SASL
// mechanism for a SCRAM mechanism name.
func scramClientGenerator(mechanism string) (func() sarama.SCRAMClient, sarama.SASLMechanism, error) {
	var (
		hash          scram.HashGeneratorFcn
		saslMechanism sarama.SASLMechanism
	)
	switch mechanism {
	case "SCRAM-SHA-256":
		hash, saslMechanism = scram.SHA256, sarama.SASLTypeSCRAMSHA256
	case "SCRAM-SHA-512":
		hash, saslMechanism = scram.SHA512, sarama.SASLTypeSCRAMSHA512
	default:
		return nil, "", fmt.Errorf("unsupported SCRAM mechanism: %s", mechanism)
	}

	return func() sarama.SCRAMClient {
		return &scramClient{hash: hash}
	}, saslMechanism, nil
}
