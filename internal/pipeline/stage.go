// Package pipeline runs one batch of raw records through conversion, index
// routing and delivery.
//
// Records are converted concurrently. Delivery is sequential in input order,
// so the fan-out of one record reaches the sink as a contiguous, ordered run.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/vincentbai/telemetry-converter/internal/convert"
	"github.com/vincentbai/telemetry-converter/internal/indexer"
	"github.com/vincentbai/telemetry-converter/internal/models"
	"github.com/vincentbai/telemetry-converter/internal/routing"
	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

const tracerName = "github.com/vincentbai/telemetry-converter/internal/pipeline"

// Sink receives indexable documents and dead letters.
type Sink interface {
	IndexDocuments(ctx context.Context, docs []*indexer.Document) error
	InsertDeadLetters(ctx context.Context, docs []*indexer.Document) error
}

// Stage converts and delivers batches.
type Stage struct {
	sink    Sink
	routes  *routing.Table
	workers int
}

// NewStage returns a stage delivering to sink. workers bounds concurrent
// conversions; values below 1 use GOMAXPROCS.
func NewStage(sink Sink, routes *routing.Table, workers int) *Stage {
	if routes == nil {
		routes = routing.DefaultTable()
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Stage{sink: sink, routes: routes, workers: workers}
}

type outcome struct {
	source value.Map
	events []*convert.Event
	err    error
}

// Process converts records and delivers the result. Per-record failures are
// annotated and dead-lettered; the returned error is reserved for sink
// failures that leave the batch undelivered and for cancellation.
func (s *Stage) Process(ctx context.Context, records []value.Value) (models.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Process")
	defer span.End()
	span.SetAttributes(attribute.Int("telemetry.records", len(records)))

	result := models.Result{Received: len(records)}
	outcomes, err := s.convertAll(ctx, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	var docs, dead []*indexer.Document
	for i, o := range outcomes {
		if o.err != nil {
			doc := indexer.NewDocument(o.source)
			doc.MarkFailed(indexer.StatusFailed, o.err.Error())
			dead = append(dead, doc)
			result.Failed++
			result.Errors = append(result.Errors, models.RecordError{
				Index: i,
				Mid:   telemetry.Read[string](telemetry.NewReader(o.source), "mid").Value(),
				Error: o.err.Error(),
			})
			continue
		}
		for _, e := range o.events {
			s.routes.Route(e.Reader())
			result.Converted++
			result.Events = append(result.Events, e.Value().Clone())

			doc := indexer.NewDocument(e.Map())
			if !doc.IsIndexable() {
				doc.MarkSkipped()
				dead = append(dead, doc)
				result.Skipped++
				continue
			}
			docs = append(docs, doc)
		}
	}

	if len(docs) > 0 {
		if err := s.sink.IndexDocuments(ctx, docs); err != nil {
			log.Printf("Index error: %v", err)
			for _, doc := range docs {
				doc.MarkFailed(indexer.StatusIndexError, err.Error())
			}
			dead = append(dead, docs...)
			result.IndexFailed = len(docs)
		} else {
			result.Indexed = len(docs)
		}
	}

	if err := s.sink.InsertDeadLetters(ctx, dead); err != nil {
		err = fmt.Errorf("dead letters: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(
		attribute.Int("telemetry.converted", result.Converted),
		attribute.Int("telemetry.failed", result.Failed),
		attribute.Int("telemetry.skipped", result.Skipped),
	)
	return result, nil
}

func (s *Stage) convertAll(ctx context.Context, records []value.Value) ([]outcome, error) {
	outcomes := make([]outcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = convertOne(record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func convertOne(record value.Value) outcome {
	source, ok := record.AsMap()
	if !ok {
		return outcome{
			source: value.Map{"raw": record},
			err:    &convert.ConversionError{Err: fmt.Errorf("record is a %s, not a map", record.Kind())},
		}
	}
	events, err := convert.Convert(source)
	return outcome{source: source, events: events, err: err}
}
