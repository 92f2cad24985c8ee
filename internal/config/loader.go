// Package config loads the application configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/logavro/internal/config/dto"
)

// DefaultPath is used when neither a flag nor CONFIG_PATH names a file.
const DefaultPath = "config/application.yaml"

// ResolvePath picks the config file: flag value, then CONFIG_PATH, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return DefaultPath
}

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Set overrides a key after files and environment, for command line flags.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load loads configuration from file and environment variables.
// A missing file is not an error.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only values containing ${...} are expanded
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "logavro")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	l.v.SetDefault("input.path", "logs.csv")
	l.v.SetDefault("input.type_column", "Type")
	l.v.SetDefault("input.log_entry_column", "Log Entry")

	l.v.SetDefault("schemas.recommendation", "")
	l.v.SetDefault("schemas.movie", "")
	l.v.SetDefault("schemas.rating", "")

	l.v.SetDefault("output.dir", ".")
	l.v.SetDefault("output.format", "binary")
	l.v.SetDefault("output.compression", "")
	l.v.SetDefault("output.block_size", 100)
	l.v.SetDefault("output.file_names.recommendation", "")
	l.v.SetDefault("output.file_names.movie", "")
	l.v.SetDefault("output.file_names.rating", "")

	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.base_path", "")
	l.v.SetDefault("storage.file.base_path", "")
	l.v.SetDefault("storage.s3.bucket", "")
	l.v.SetDefault("storage.s3.region", "us-east-1")
	l.v.SetDefault("storage.s3.endpoint", "")
	l.v.SetDefault("storage.s3.sse_kms_key_id", "")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)
	l.v.SetDefault("storage.gcs.bucket", "")
	l.v.SetDefault("storage.gcs.project_id", "")
	l.v.SetDefault("storage.gcs.credentials_file", "")
	l.v.SetDefault("storage.gcs.credentials_json", "")
	l.v.SetDefault("storage.gcs.endpoint", "")
	l.v.SetDefault("storage.gcs.use_default_credential", false)
	l.v.SetDefault("storage.azure.account_name", "")
	l.v.SetDefault("storage.azure.account_key", "")
	l.v.SetDefault("storage.azure.container", "")
	l.v.SetDefault("storage.azure.endpoint", "")

	l.v.SetDefault("retry.max_attempts", 5)
	l.v.SetDefault("retry.initial_backoff_ms", 500)
	l.v.SetDefault("retry.max_backoff_ms", 10000)
	l.v.SetDefault("retry.max_elapsed_ms", 120000)

	l.v.SetDefault("kafka.enabled", false)
	l.v.SetDefault("kafka.client_id", "logavro")
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.bootstrap_servers", []string{})
	l.v.SetDefault("kafka.sasl_mechanism", "")
	l.v.SetDefault("kafka.sasl_username", "")
	l.v.SetDefault("kafka.sasl_password", "")
	l.v.SetDefault("kafka.msk_region", "")
	l.v.SetDefault("kafka.tls.ca_file", "")
	l.v.SetDefault("kafka.tls.cert_file", "")
	l.v.SetDefault("kafka.tls.key_file", "")
	l.v.SetDefault("kafka.tls.insecure_skip_verify", false)
	l.v.SetDefault("kafka.producer.required_acks", -1)
	l.v.SetDefault("kafka.producer.compression", "snappy")
	l.v.SetDefault("kafka.producer.idempotent", true)
	l.v.SetDefault("kafka.producer.retry_max", 5)
	l.v.SetDefault("kafka.producer.retry_backoff_ms", 100)
	l.v.SetDefault("kafka.producer.max_message_bytes", 1000000)
	l.v.SetDefault("kafka.producer.batch_max_messages", 500)
	l.v.SetDefault("kafka.producer.batch_max_bytes", 1048576)
	l.v.SetDefault("kafka.topics.recommendation", "movielog.recommendation-requests")
	l.v.SetDefault("kafka.topics.movie", "movielog.movie-watches")
	l.v.SetDefault("kafka.topics.rating", "movielog.movie-ratings")
	l.v.SetDefault("kafka.dlq.enabled", false)
	l.v.SetDefault("kafka.dlq.topic", "movielog.rejects")

	l.v.SetDefault("rejects.path", "")

	l.v.SetDefault("generator.rows", 1000)
	l.v.SetDefault("generator.invalid_ratio", 0.05)
	l.v.SetDefault("generator.seed", 0)

	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", false)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.textfile_path", "")
	l.v.SetDefault("observability.metrics.push_url", "")
	l.v.SetDefault("observability.metrics.job", "logavro")
}
