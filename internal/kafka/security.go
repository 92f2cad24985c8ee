package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
)

// SecurityConfig contains broker authentication and transport settings.
type SecurityConfig struct {
	Protocol      string // PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL
	SASLMechanism string // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512, AWS_MSK_IAM
	SASLUsername  string
	SASLPassword  string
	MSKRegion     string
	TLS           TLSConfig
}

// TLSConfig contains TLS settings for SSL and SASL_SSL.
type TLSConfig struct {
	CACertFile         string
	ClientCertFile     string
	ClientKeyFile      string
	InsecureSkipVerify bool
}

// configureSecurity applies the security protocol to a sarama config.
func configureSecurity(config *sarama.Config, sec SecurityConfig) error {
	switch sec.Protocol {
	case "", "PLAINTEXT":
		return nil

	case "SSL":
		return configureTLS(config, sec.TLS)

	case "SASL_PLAINTEXT", "SASL_SSL":
		if err := configureSASL(config, sec); err != nil {
			return err
		}
		if sec.Protocol == "SASL_SSL" {
			return configureTLS(config, sec.TLS)
		}
		return nil

	default:
		return fmt.Errorf("unsupported security protocol: %s", sec.Protocol)
	}
}

func configureSASL(config *sarama.Config, sec SecurityConfig) error {
	config.Net.SASL.Enable = true

	switch sec.SASLMechanism {
	case "PLAIN":
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		config.Net.SASL.User = sec.SASLUsername
		config.Net.SASL.Password = sec.SASLPassword

	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		generator, mechanism, err := scramClientGenerator(sec.SASLMechanism)
		if err != nil {
			return err
		}
		config.Net.SASL.Mechanism = mechanism
		config.Net.SASL.User = sec.SASLUsername
		config.Net.SASL.Password = sec.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = generator

	case "AWS_MSK_IAM":
		if sec.MSKRegion == "" {
			return fmt.Errorf("AWS_MSK_IAM requires an MSK region")
		}
		config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: sec.MSKRegion}

	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", sec.SASLMechanism)
	}

	return nil
}

func configureTLS(config *sarama.Config, cfg TLSConfig) error {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to parse CA certificate %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	config.Net.TLS.Enable = true
	config.Net.TLS.Config = tlsConfig
	return nil
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": fmt.Sprintf("%d", expiryMs),
		},
	}, nil
}
