// Package generator writes synthetic movie service logs in the batch input CSV layout.
package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"

	"github.com/jittakal/logavro/internal/source"
	"github.com/jittakal/logavro/pkg/event"
)

const (
	recommendationTimeLayout = "2006-01-02T15:04:05.000"
	eventTimeLayout          = "2006-01-02T15:04:05"
)

// Config controls generated rows.
type Config struct {
	Rows int
	// InvalidRatio is the share of rows that are malformed or carry an unknown type.
	InvalidRatio float64
	Seed         int64
	Start        time.Time
	Columns      source.Columns
}

// Stats counts generated rows by type tag.
type Stats struct {
	Rows   int
	ByType map[string]int
}

// Generator generates fake log rows.
type Generator struct {
	config Config
	faker  faker.Faker
	logger *slog.Logger
}

// New creates a generator. A zero seed draws a random one.
func New(cfg Config, logger *slog.Logger) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2023, 8, 1, 10, 0, 0, 0, time.UTC)
	}
	if cfg.Columns == (source.Columns{}) {
		cfg.Columns = source.DefaultColumns()
	}
	return &Generator{
		config: cfg,
		faker:  faker.NewWithSeed(rand.NewSource(cfg.Seed)),
		logger: logger,
	}
}

// Write writes the header and cfg.Rows rows to w.
func (g *Generator) Write(w io.Writer) (Stats, error) {
	stats := Stats{ByType: make(map[string]int)}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{g.config.Columns.Type, g.config.Columns.LogEntry}); err != nil {
		return stats, fmt.Errorf("failed to write header: %w", err)
	}

	ts := g.config.Start
	for i := 0; i < g.config.Rows; i++ {
		ts = ts.Add(time.Duration(g.faker.IntBetween(1, 5000)) * time.Millisecond)

		tag, line := g.Row(ts)
		if err := cw.Write([]string{tag, line}); err != nil {
			return stats, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		stats.Rows++
		stats.ByType[tag]++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, fmt.Errorf("failed to flush rows: %w", err)
	}

	g.logger.Info("generated log rows", "rows", stats.Rows, "by_type", stats.ByType, "seed", g.config.Seed)
	return stats, nil
}

// Row returns the type tag and log entry of one random row at ts.
func (g *Generator) Row(ts time.Time) (string, string) {
	if g.config.InvalidRatio > 0 && float64(g.faker.IntBetween(0, 9999))/10000 < g.config.InvalidRatio {
		return g.invalidRow(ts)
	}

	switch event.Categories()[g.faker.IntBetween(0, 2)] {
	case event.CategoryRecommendation:
		return event.CategoryRecommendation.String(), g.recommendation(ts)
	case event.CategoryMovie:
		return event.CategoryMovie.String(), g.movieWatch(ts)
	default:
		return event.CategoryRating.String(), g.rating(ts)
	}
}

func (g *Generator) userID() int {
	return g.faker.IntBetween(1, 1000000)
}

// movieID joins random words with "+" the way movie ids appear in request paths.
func (g *Generator) movieID() string {
	words := g.faker.Lorem().Words(g.faker.IntBetween(1, 3))
	return strings.Join(words, "+") + "+" + fmt.Sprint(g.faker.IntBetween(1950, 2023))
}

func (g *Generator) recommendation(ts time.Time) string {
	ids := make([]string, g.faker.IntBetween(1, 20))
	for i := range ids {
		ids[i] = g.movieID()
	}
	status := g.faker.RandomStringElement([]string{"200", "200", "200", "0", "500"})
	return fmt.Sprintf("%s,%d,recommendation request %s:%d, status %s, result: %s, %d ms",
		ts.Format(recommendationTimeLayout),
		g.userID(),
		"17-"+fmt.Sprint(g.faker.IntBetween(1, 9))+"-"+g.faker.Lorem().Word(),
		8080+g.faker.IntBetween(0, 3),
		status,
		strings.Join(ids, ", "),
		g.faker.IntBetween(10, 900),
	)
}

func (g *Generator) movieWatch(ts time.Time) string {
	return fmt.Sprintf("%s,%d,GET /data/m/%s/%d.mpg",
		ts.Format(eventTimeLayout), g.userID(), g.movieID(), g.faker.IntBetween(0, 180))
}

func (g *Generator) rating(ts time.Time) string {
	return fmt.Sprintf("%s,%d,GET /rate/%s=%d",
		ts.Format(eventTimeLayout), g.userID(), g.movieID(), g.faker.IntBetween(1, 5))
}

func (g *Generator) invalidRow(ts time.Time) (string, string) {
	switch g.faker.IntBetween(0, 2) {
	case 0:
		return "Search", fmt.Sprintf("%s,%d,GET /search?q=%s", ts.Format(eventTimeLayout), g.userID(), g.faker.Lorem().Word())
	case 1:
		return event.CategoryMovie.String(), g.faker.Lorem().Sentence(4)
	default:
		return event.CategoryRating.String(), fmt.Sprintf("%s,%d,GET /rate/%s", ts.Format(eventTimeLayout), g.userID(), g.movieID())
	}
}
