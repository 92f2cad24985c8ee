package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/jittakal/logavro/internal/config/dto"
	"github.com/jittakal/logavro/internal/encoder"
	"github.com/jittakal/logavro/internal/generator"
	"github.com/jittakal/logavro/internal/kafka"
	"github.com/jittakal/logavro/internal/observability"
	"github.com/jittakal/logavro/internal/pipeline"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/internal/server"
	"github.com/jittakal/logavro/internal/source"
	"github.com/jittakal/logavro/internal/storage"
	"github.com/jittakal/logavro/pkg/event"
	pkgstorage "github.com/jittakal/logavro/pkg/storage"
)

// app holds what every command needs.
type app struct {
	cfg     *dto.ApplicationConfig
	logger  *slog.Logger
	metrics *observability.Metrics
	status  *server.BatchStatus
	stdout  io.Writer
}

func (a *app) schemas() (*schema.Set, error) {
	return schema.Load(schema.Paths{
		Recommendation: a.cfg.Schemas.Recommendation,
		Movie:          a.cfg.Schemas.Movie,
		Rating:         a.cfg.Schemas.Rating,
	})
}

func (a *app) factory() (*encoder.Factory, error) {
	format, err := event.ParseFileFormat(a.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	f, err := encoder.NewFactory(format, a.cfg.Output.Compression)
	if err != nil {
		return nil, err
	}
	return f.WithBlockSize(a.cfg.Output.BlockSize), nil
}

func (a *app) router(extension string) *storage.DefaultRouter {
	names := a.cfg.Output.FileNames
	withExt := func(name string) string {
		if name == "" {
			return ""
		}
		return name + extension
	}
	return storage.NewRouter(a.cfg.Storage.BasePath, extension, map[event.Category]string{
		event.CategoryRecommendation: withExt(names.Recommendation),
		event.CategoryMovie:          withExt(names.Movie),
		event.CategoryRating:         withExt(names.Rating),
	})
}

// transfersFiles reports whether finished files leave the output directory.
func (a *app) transfersFiles() bool {
	return a.cfg.Storage.Backend != storage.BackendFile || a.cfg.Storage.File.BasePath != ""
}

func (a *app) backend(ctx context.Context) (pkgstorage.Backend, error) {
	s := a.cfg.Storage
	r := a.cfg.Retry
	return storage.NewBackend(ctx, storage.BackendConfig{
		Type: s.Backend,
		File: storage.FileConfig{BasePath: s.File.BasePath},
		S3: storage.S3Config{
			Bucket:       s.S3.Bucket,
			Region:       s.S3.Region,
			Endpoint:     s.S3.Endpoint,
			UsePathStyle: s.S3.UsePathStyle,
			SSEEnabled:   s.S3.SSEEnabled,
			SSEKMSKeyID:  s.S3.SSEKMSKeyID,
		},
		GCS: storage.GCSConfig{
			Bucket:               s.GCS.Bucket,
			ProjectID:            s.GCS.ProjectID,
			CredentialsFile:      s.GCS.CredentialsFile,
			CredentialsJSON:      s.GCS.CredentialsJSON,
			Endpoint:             s.GCS.Endpoint,
			UseDefaultCredential: s.GCS.UseDefaultCredential,
		},
		Azure: storage.AzureConfig{
			AccountName:   s.Azure.AccountName,
			AccountKey:    s.Azure.AccountKey,
			ContainerName: s.Azure.Container,
			Endpoint:      s.Azure.Endpoint,
		},
		Retry: storage.RetryConfig{
			MaxAttempts:     r.MaxAttempts,
			InitialInterval: time.Duration(r.InitialBackoffMS) * time.Millisecond,
			MaxInterval:     time.Duration(r.MaxBackoffMS) * time.Millisecond,
			MaxElapsedTime:  time.Duration(r.MaxElapsedMS) * time.Millisecond,
		},
	}, a.logger, a.metrics)
}

func (a *app) producerConfig() kafka.ProducerConfig {
	k := a.cfg.Kafka
	return kafka.ProducerConfig{
		Brokers:         k.BootstrapServers,
		ClientID:        k.ClientID,
		RequiredAcks:    k.Producer.RequiredAcks,
		Compression:     k.Producer.Compression,
		Idempotent:      k.Producer.Idempotent,
		RetryMax:        k.Producer.RetryMax,
		RetryBackoff:    time.Duration(k.Producer.RetryBackoffMS) * time.Millisecond,
		MaxMessageBytes: k.Producer.MaxMessageBytes,
		Security: kafka.SecurityConfig{
			Protocol:      k.SecurityProtocol,
			SASLMechanism: k.SASLMechanism,
			SASLUsername:  k.SASLUsername,
			SASLPassword:  k.SASLPassword,
			MSKRegion:     k.MSKRegion,
			TLS: kafka.TLSConfig{
				CACertFile:         k.TLS.CAFile,
				ClientCertFile:     k.TLS.CertFile,
				ClientKeyFile:      k.TLS.KeyFile,
				InsecureSkipVerify: k.TLS.InsecureSkipVerify,
			},
		},
	}
}

// sinks builds the reject sinks and record publisher the configuration asks for.
// The returned close function releases them in reverse order of creation.
func (a *app) sinks(runID string) (opts []pipeline.Option, closeAll func() error, err error) {
	var closers []func() error
	closeAll = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = closeAll()
		}
	}()

	if path := a.cfg.Rejects.Path; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, closeAll, fmt.Errorf("failed to create rejects directory: %w", err)
		}
		sink, err := pipeline.CreateCSVRejectFile(path, a.metrics)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, sink.Close)
		opts = append(opts, pipeline.WithRejectSink(sink))
	}

	k := a.cfg.Kafka
	if !k.Enabled && !k.DLQ.Enabled {
		return opts, closeAll, nil
	}

	producer, err := kafka.NewSyncProducer(a.producerConfig())
	if err != nil {
		return nil, closeAll, err
	}

	if k.Enabled {
		pub, err := kafka.NewPublisher(producer, kafka.PublisherConfig{
			Topics: kafka.Topics{
				event.CategoryRecommendation: k.Topics.Recommendation,
				event.CategoryMovie:          k.Topics.Movie,
				event.CategoryRating:         k.Topics.Rating,
			},
			BatchMaxMessages: k.Producer.BatchMaxMessages,
			BatchMaxBytes:    k.Producer.BatchMaxBytes,
			RunID:            runID,
		}, a.metrics, a.logger)
		if err != nil {
			_ = producer.Close()
			return nil, closeAll, err
		}
		// The publisher owns the producer and closes it last.
		closers = append(closers, pub.Close)
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	if k.DLQ.Enabled {
		dlq, err := a.dlq(producer, !k.Enabled, runID)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, dlq.Close)
		opts = append(opts, pipeline.WithRejectSink(dlq))
	}

	return opts, closeAll, nil
}

func (a *app) dlq(producer sarama.SyncProducer, owned bool, runID string) (*kafka.DLQPublisher, error) {
	dlq, err := kafka.NewDLQPublisher(producer, owned, kafka.DLQConfig{
		Enabled: true,
		Topic:   a.cfg.Kafka.DLQ.Topic,
		RunID:   runID,
	}, a.metrics, a.logger)
	if err != nil && owned {
		_ = producer.Close()
	}
	return dlq, err
}

func (a *app) write(ctx context.Context) error {
	schemas, err := a.schemas()
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	factory, err := a.factory()
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	router := a.router(factory.FileExtension())

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)

	opts, closeSinks, err := a.sinks(runID)
	if err != nil {
		return fmt.Errorf("failed to create sinks: %w", err)
	}
	opts = append(opts,
		pipeline.WithColumns(source.Columns{Type: a.cfg.Input.TypeColumn, LogEntry: a.cfg.Input.LogEntryColumn}),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithProgress(a.status),
		pipeline.WithLogger(logger),
	)

	a.status.SetPhase(server.PhaseWriting)
	summary, err := pipeline.NewBatchWriter(schemas, factory, opts...).
		WriteFiles(ctx, a.cfg.Input.Path, a.cfg.Output.Dir, router)
	if closeErr := closeSinks(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close sinks: %w", closeErr))
	}
	if err != nil {
		return err
	}
	a.printSummary(summary, router)

	if !a.transfersFiles() {
		return nil
	}

	a.status.SetPhase(server.PhasePublishing)
	backend, err := a.backend(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer backend.Close()

	transfers, err := storage.UploadAll(ctx, backend, router, a.cfg.Output.Dir)
	for _, t := range transfers {
		logger.Info("uploaded category file", "category", t.Category.Slug(), "key", t.Key, "bytes", t.Bytes)
	}
	return err
}

func (a *app) printSummary(s pipeline.Summary, router *storage.DefaultRouter) {
	fmt.Fprintf(a.stdout, "rows read: %d\n", s.RowsRead)
	for _, c := range event.Categories() {
		fmt.Fprintf(a.stdout, "%s: %d records, %d bytes -> %s\n",
			c.Slug(), s.Written[c], s.Files[c].SizeBytes,
			filepath.Join(a.cfg.Output.Dir, router.FileName(c)))
	}
	for reason, n := range s.Skipped {
		fmt.Fprintf(a.stdout, "skipped (%s): %d\n", reason, n)
	}
}

func (a *app) read(ctx context.Context) error {
	schemas, err := a.schemas()
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	factory, err := a.factory()
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	router := a.router(factory.FileExtension())

	if a.transfersFiles() {
		a.status.SetPhase(server.PhasePublishing)
		backend, err := a.backend(ctx)
		if err != nil {
			return fmt.Errorf("failed to create storage backend: %w", err)
		}
		defer backend.Close()

		if _, err := storage.DownloadAll(ctx, backend, router, a.cfg.Output.Dir); err != nil {
			return err
		}
	}

	a.status.SetPhase(server.PhaseReading)
	enc := json.NewEncoder(a.stdout)
	var current event.Category
	counts, err := pipeline.NewBatchReader(schemas, factory, a.metrics, a.logger).
		ReadDir(ctx, a.cfg.Output.Dir, router, func(c event.Category, rec event.Record) error {
			if c != current {
				current = c
				if _, err := fmt.Fprintf(a.stdout, "== %s ==\n", c); err != nil {
					return err
				}
			}
			return enc.Encode(rec)
		})
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	a.logger.Info("read completed", "records", total)
	return nil
}

func (a *app) generate() error {
	g := a.cfg.Generator
	f, err := os.Create(a.cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("failed to create input: %w", err)
	}

	_, err = generator.New(generator.Config{
		Rows:         g.Rows,
		InvalidRatio: g.InvalidRatio,
		Seed:         g.Seed,
		Columns:      source.Columns{Type: a.cfg.Input.TypeColumn, LogEntry: a.cfg.Input.LogEntryColumn},
	}, a.logger).Write(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
