package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Input         InputConfig         `mapstructure:"input"`
	Schemas       SchemaConfig        `mapstructure:"schemas"`
	Output        OutputConfig        `mapstructure:"output"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Rejects       RejectsConfig       `mapstructure:"rejects"`
	Generator     GeneratorConfig     `mapstructure:"generator"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// InputConfig locates the log CSV and its columns.
type InputConfig struct {
	Path           string `mapstructure:"path" validate:"required"`
	TypeColumn     string `mapstructure:"type_column" validate:"required"`
	LogEntryColumn string `mapstructure:"log_entry_column" validate:"required"`
}

// SchemaConfig holds per-category schema files. An empty path selects the embedded schema.
type SchemaConfig struct {
	Recommendation string `mapstructure:"recommendation"`
	Movie          string `mapstructure:"movie"`
	Rating         string `mapstructure:"rating"`
}

// OutputConfig contains encoding and output file settings
type OutputConfig struct {
	Dir         string          `mapstructure:"dir" validate:"required"`
	Format      string          `mapstructure:"format" validate:"oneof=binary ocf parquet"`
	Compression string          `mapstructure:"compression"`
	BlockSize   int             `mapstructure:"block_size" validate:"min=1"`
	FileNames   FileNamesConfig `mapstructure:"file_names"`
}

// FileNamesConfig overrides output file base names. Extensions follow the format.
type FileNamesConfig struct {
	Recommendation string `mapstructure:"recommendation" validate:"omitempty,excludes=/"`
	Movie          string `mapstructure:"movie" validate:"omitempty,excludes=/"`
	Rating         string `mapstructure:"rating" validate:"omitempty,excludes=/"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend  string      `mapstructure:"backend" validate:"oneof=file s3 gcs azure"`
	BasePath string      `mapstructure:"base_path"`
	File     FileConfig  `mapstructure:"file"`
	S3       S3Config    `mapstructure:"s3"`
	GCS      GCSConfig   `mapstructure:"gcs"`
	Azure    AzureConfig `mapstructure:"azure"`
}

// FileConfig contains local filesystem configuration.
// An empty base path leaves the output files in the output directory.
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint" validate:"omitempty,url"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// RetryConfig contains upload retry settings
type RetryConfig struct {
	MaxAttempts      uint `mapstructure:"max_attempts" validate:"min=1"`
	InitialBackoffMS int  `mapstructure:"initial_backoff_ms" validate:"min=1"`
	MaxBackoffMS     int  `mapstructure:"max_backoff_ms" validate:"gtefield=InitialBackoffMS"`
	MaxElapsedMS     int  `mapstructure:"max_elapsed_ms" validate:"min=0"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	BootstrapServers []string       `mapstructure:"bootstrap_servers" validate:"required_if=Enabled true,dive,hostname_port"`
	ClientID         string         `mapstructure:"client_id"`
	SecurityProtocol string         `mapstructure:"security_protocol" validate:"omitempty,oneof=PLAINTEXT SSL SASL_PLAINTEXT SASL_SSL"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512 AWS_MSK_IAM"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	MSKRegion        string         `mapstructure:"msk_region"`
	TLS              TLSConfig      `mapstructure:"tls"`
	Producer         ProducerConfig `mapstructure:"producer"`
	Topics           TopicsConfig   `mapstructure:"topics"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// TLSConfig contains client TLS files
type TLSConfig struct {
	CAFile             string `mapstructure:"ca_file"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ProducerConfig contains Kafka producer configuration
type ProducerConfig struct {
	RequiredAcks     int    `mapstructure:"required_acks" validate:"oneof=-1 0 1"`
	Compression      string `mapstructure:"compression" validate:"omitempty,oneof=none gzip snappy lz4 zstd"`
	Idempotent       bool   `mapstructure:"idempotent"`
	RetryMax         int    `mapstructure:"retry_max" validate:"min=0"`
	RetryBackoffMS   int    `mapstructure:"retry_backoff_ms" validate:"min=0"`
	MaxMessageBytes  int    `mapstructure:"max_message_bytes" validate:"min=0"`
	BatchMaxMessages int    `mapstructure:"batch_max_messages" validate:"min=1"`
	BatchMaxBytes    int64  `mapstructure:"batch_max_bytes" validate:"min=0"`
}

// TopicsConfig names the topic of each record category
type TopicsConfig struct {
	Recommendation string `mapstructure:"recommendation" validate:"required_if_enabled"`
	Movie          string `mapstructure:"movie" validate:"required_if_enabled"`
	Rating         string `mapstructure:"rating" validate:"required_if_enabled"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic" validate:"required_if=Enabled true"`
}

// RejectsConfig contains the local reject file setting
type RejectsConfig struct {
	Path string `mapstructure:"path"`
}

// GeneratorConfig contains synthetic log generation settings
type GeneratorConfig struct {
	Rows         int     `mapstructure:"rows" validate:"min=0"`
	InvalidRatio float64 `mapstructure:"invalid_ratio" validate:"min=0,max=1"`
	Seed         int64   `mapstructure:"seed"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output" validate:"oneof=stdout stderr discard"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Port         int    `mapstructure:"port" validate:"min=1,max=65535"`
	TextfilePath string `mapstructure:"textfile_path"`
	PushURL      string `mapstructure:"push_url" validate:"omitempty,url"`
	Job          string `mapstructure:"job"`
}

// Validate checks field tags and the settings that depend on the selected backend.
func (c *ApplicationConfig) Validate() error {
	v := validator.New()
	enabled := c.Kafka.Enabled
	if err := v.RegisterValidation("required_if_enabled", func(fl validator.FieldLevel) bool {
		return !enabled || strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return fmt.Errorf("failed to register validation: %w", err)
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return err
	}

	switch c.Storage.Backend {
	case "s3":
		if err := c.Storage.S3.Validate(); err != nil {
			return err
		}
	case "gcs":
		if err := c.Storage.GCS.Validate(); err != nil {
			return err
		}
	case "azure":
		if err := c.Storage.Azure.Validate(); err != nil {
			return err
		}
	}

	if c.Kafka.Enabled || c.Kafka.DLQ.Enabled {
		if len(c.Kafka.BootstrapServers) == 0 {
			return errors.New("kafka.bootstrap_servers is required when kafka or the dlq is enabled")
		}
		if c.Kafka.SASLMechanism == "AWS_MSK_IAM" && c.Kafka.MSKRegion == "" {
			return errors.New("kafka.msk_region is required for AWS_MSK_IAM")
		}
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" && c.Endpoint == "" {
		return fmt.Errorf("azure account name or endpoint is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// fieldErrors renders validator failures with their config key paths.
func fieldErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
