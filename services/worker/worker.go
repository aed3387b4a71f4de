package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sjsage522/gloomfloor/helpers"
	"sjsage522/gloomfloor/internal/crawler"
	"sjsage522/gloomfloor/logger"
	apperrors "sjsage522/gloomfloor/pkg/errors"
	"sjsage522/gloomfloor/services/exporter"
	"sjsage522/gloomfloor/services/publisher"
)

// ErrEnrichmentFailed is wrapped by the run error when at least one item could not be enriched
var ErrEnrichmentFailed = errors.New("enrichment failed")

// Collector returns the raw text of at least minimum listing cards
type Collector interface {
	Collect(ctx context.Context, minimum int) ([]string, error)
}

// BatchEnricher enriches a batch of items and returns one result per item, in order
type BatchEnricher interface {
	EnrichAll(ctx context.Context, items []crawler.Item) []crawler.Result
}

// Options holds the per-run settings of a Worker
type Options struct {
	MinItems      int
	RarityBaseURL string
	OutputPath    string
	SummaryLimit  int
	// PublishKey is the stream field records are published under
	PublishKey string
}

// Report describes what a run did
type Report struct {
	RunID     string
	Collected int
	Parsed    int
	Enriched  int
	Failed    int
	Published int
	Output    string
	Records   []crawler.Item
}

// record is the published form of an exported item
type record struct {
	RunID    string `json:"run_id"`
	crawler.Item
	Enriched bool   `json:"enriched"`
	Error    string `json:"error,omitempty"`
}

// Worker runs one collect, enrich, export pass
type Worker struct {
	collector Collector
	enricher  BatchEnricher
	publisher publisher.Publisher
	logger    helpers.LoggerInterface
	opts      Options

	writeFile func(path, content string) error
}

// NewWorker creates a new worker. pub may be nil to skip publishing.
func NewWorker(
	collector Collector,
	enricher BatchEnricher,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
	opts Options,
) *Worker {
	if opts.PublishKey == "" {
		opts.PublishKey = "gloom"
	}
	return &Worker{
		collector: collector,
		enricher:  enricher,
		publisher: pub,
		logger:    logger,
		opts:      opts,
		writeFile: exporter.WriteFile,
	}
}

// Run collects listings, enriches them one at a time and exports the result.
// Items whose enrichment failed are still exported, without rank or traits.
// The returned error is non-nil when collection failed, any enrichment failed,
// or the export could not be written.
func (w *Worker) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), Output: w.opts.OutputPath}
	log := logger.ForWorker().WithFields(logger.Fields{
		"run_id": report.RunID,
		"output": w.opts.OutputPath,
	})
	log.Debug().Int("min_items", w.opts.MinItems).Msg("Run started")

	texts, err := w.collector.Collect(ctx, w.opts.MinItems)
	if err != nil {
		w.logger.LogError("collector", err)
		return report, fmt.Errorf("collect listings: %w", err)
	}
	report.Collected = len(texts)

	items := crawler.ParseListing(texts, w.opts.RarityBaseURL)
	report.Parsed = len(items)
	if dropped := len(texts) - len(items); dropped > 0 {
		w.logger.LogInfo("Dropped %d listing cards without a recognizable number and price", dropped)
	}

	log.Debug().Int("items", len(items)).Msg("Submitting items for enrichment")
	results := w.enricher.EnrichAll(ctx, items)

	records := make([]crawler.Item, 0, len(results))
	failures := make(map[string]error)
	for _, res := range results {
		if res.Err != nil {
			report.Failed++
			failures[res.Item.Number] = res.Err
			w.logger.LogError("scheduler", fmt.Errorf("#%s: %w", res.Item.Number, res.Err))
		} else {
			report.Enriched++
		}
		records = append(records, res.Item)
	}
	report.Records = records
	w.logger.LogInfo("Enriched %d of %d Glooms (%d failed)", report.Enriched, len(results), report.Failed)

	var errs []error
	if report.Failed > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d items", ErrEnrichmentFailed, report.Failed, len(results)))
	}

	content := exporter.Export(records, exporter.Columns)
	if err := w.writeFile(w.opts.OutputPath, content); err != nil {
		w.logger.LogError("exporter", err)
		errs = append(errs, err)
	} else {
		w.logger.LogInfo("Wrote %d records to %s", len(records), w.opts.OutputPath)
	}

	if w.publisher != nil {
		published, err := w.publish(report.RunID, records, failures)
		report.Published = published
		if err != nil {
			errs = append(errs, err)
		}
	}

	w.logger.LogInfo("Finished... happy shopping!\n%s", exporter.Summary(records, w.opts.SummaryLimit))
	log.Debug().
		Int("enriched", report.Enriched).
		Int("failed", report.Failed).
		Int("published", report.Published).
		Msg("Run finished")

	return report, errors.Join(errs...)
}

// publish sends every record to the stream, then trims the streams
func (w *Worker) publish(runID string, records []crawler.Item, failures map[string]error) (int, error) {
	var errs []error
	published := 0
	for _, item := range records {
		rec := record{RunID: runID, Item: item, Enriched: item.Enriched()}
		if err, failed := failures[item.Number]; failed {
			rec.Error = err.Error()
		}

		data, err := json.Marshal(rec)
		if err != nil {
			w.logger.LogError("publisher", err)
			errs = append(errs, err)
			continue
		}
		if err := w.publisher.Publish(w.opts.PublishKey, data); err != nil {
			err = apperrors.NewPublisher(item.Number, "failed to publish record", err)
			w.logger.LogError("publisher", err)
			errs = append(errs, err)
			continue
		}
		published++
	}

	if err := w.publisher.TrimStreams(); err != nil {
		err = apperrors.NewPublisher("trim", "failed to trim streams", err)
		w.logger.LogError("publisher", err)
		errs = append(errs, err)
	}
	return published, errors.Join(errs...)
}
