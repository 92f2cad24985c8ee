package dto

import (
	"strings"
	"testing"
)

func validConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: ApplicationInfo{Name: "logavro"},
		Input:       InputConfig{Path: "logs.csv", TypeColumn: "Type", LogEntryColumn: "Log Entry"},
		Output:      OutputConfig{Dir: "out", Format: "binary", BlockSize: 100},
		Storage:     StorageConfig{Backend: "file"},
		Retry:       RetryConfig{MaxAttempts: 5, InitialBackoffMS: 500, MaxBackoffMS: 10000},
		Kafka: KafkaConfig{
			Producer: ProducerConfig{RequiredAcks: -1, Compression: "none", BatchMaxMessages: 500},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			Metrics: MetricsConfig{Port: 9090},
		},
	}
}

func TestApplicationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ApplicationConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ApplicationConfig) {}},
		{
			name:    "missing name",
			mutate:  func(c *ApplicationConfig) { c.Application.Name = "" },
			wantErr: "Application.Name",
		},
		{
			name:    "missing input path",
			mutate:  func(c *ApplicationConfig) { c.Input.Path = "" },
			wantErr: "Input.Path",
		},
		{
			name:    "unknown format",
			mutate:  func(c *ApplicationConfig) { c.Output.Format = "orc" },
			wantErr: "Output.Format",
		},
		{
			name:    "file name with slash",
			mutate:  func(c *ApplicationConfig) { c.Output.FileNames.Movie = "a/b" },
			wantErr: "FileNames.Movie",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *ApplicationConfig) { c.Storage.Backend = "ftp" },
			wantErr: "Storage.Backend",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *ApplicationConfig) { c.Storage.Backend = "s3" },
			wantErr: "s3 bucket is required",
		},
		{
			name: "s3 complete",
			mutate: func(c *ApplicationConfig) {
				c.Storage.Backend = "s3"
				c.Storage.S3 = S3Config{Bucket: "logs", Region: "us-east-1"}
			},
		},
		{
			name:    "gcs without bucket",
			mutate:  func(c *ApplicationConfig) { c.Storage.Backend = "gcs" },
			wantErr: "gcs bucket is required",
		},
		{
			name: "azure without container",
			mutate: func(c *ApplicationConfig) {
				c.Storage.Backend = "azure"
				c.Storage.Azure.AccountName = "acct"
			},
			wantErr: "azure container is required",
		},
		{
			name:    "retry backoff inverted",
			mutate:  func(c *ApplicationConfig) { c.Retry.MaxBackoffMS = 10 },
			wantErr: "Retry.MaxBackoffMS",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *ApplicationConfig) { c.Observability.Metrics.Port = 70000 },
			wantErr: "Metrics.Port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *ApplicationConfig) { c.Observability.Logging.Level = "trace" },
			wantErr: "Logging.Level",
		},
		{
			name:    "kafka enabled without brokers",
			mutate:  func(c *ApplicationConfig) { c.Kafka.Enabled = true },
			wantErr: "BootstrapServers",
		},
		{
			name: "kafka enabled without topics",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.Enabled = true
				c.Kafka.BootstrapServers = []string{"localhost:9092"}
			},
			wantErr: "Topics.Recommendation",
		},
		{
			name: "kafka complete",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.Enabled = true
				c.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Kafka.Topics = TopicsConfig{Recommendation: "r", Movie: "m", Rating: "t"}
			},
		},
		{
			name:    "broker without port",
			mutate:  func(c *ApplicationConfig) { c.Kafka.BootstrapServers = []string{"localhost"} },
			wantErr: "BootstrapServers[0]",
		},
		{
			name:    "dlq without topic",
			mutate:  func(c *ApplicationConfig) { c.Kafka.DLQ.Enabled = true },
			wantErr: "DLQ.Topic",
		},
		{
			name: "dlq without brokers",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.DLQ = DLQConfig{Enabled: true, Topic: "rejects"}
			},
			wantErr: "bootstrap_servers is required",
		},
		{
			name: "msk iam without region",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.DLQ = DLQConfig{Enabled: true, Topic: "rejects"}
				c.Kafka.BootstrapServers = []string{"b-1.msk:9098"}
				c.Kafka.SecurityProtocol = "SASL_SSL"
				c.Kafka.SASLMechanism = "AWS_MSK_IAM"
			},
			wantErr: "msk_region",
		},
		{
			name:    "unknown sasl mechanism",
			mutate:  func(c *ApplicationConfig) { c.Kafka.SASLMechanism = "GSSAPI" },
			wantErr: "SASLMechanism",
		},
		{
			name:    "invalid acks",
			mutate:  func(c *ApplicationConfig) { c.Kafka.Producer.RequiredAcks = 2 },
			wantErr: "RequiredAcks",
		},
		{
			name:    "invalid ratio",
			mutate:  func(c *ApplicationConfig) { c.Generator.InvalidRatio = 1.5 },
			wantErr: "InvalidRatio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAzureConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AzureConfig
		wantErr bool
	}{
		{"account and container", AzureConfig{AccountName: "a", Container: "c"}, false},
		{"endpoint only", AzureConfig{Endpoint: "http://127.0.0.1:10000/devstoreaccount1", Container: "c"}, false},
		{"neither", AzureConfig{Container: "c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
