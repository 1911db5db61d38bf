package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xenking/storefront-catalog/internal/domain/catalog"

// Engine answers listing and single-product queries.
//
// Each request reads one snapshot, joins it once and derives both the page
// and the totals from that single materialized set. Nothing is shared between
// requests.
type Engine struct {
	reader Reader

	tracer   trace.Tracer
	queries  metric.Int64Counter
	duration metric.Float64Histogram
	matched  metric.Int64Histogram
}

// NewEngine creates an Engine reading from reader.
func NewEngine(reader Reader, tp trace.TracerProvider, mp metric.MeterProvider) (*Engine, error) {
	meter := mp.Meter(instrumentationName)

	queries, err := meter.Int64Counter("catalog.query.count",
		metric.WithDescription("Catalog listing queries served"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create query counter")
	}
	duration, err := meter.Float64Histogram("catalog.query.duration",
		metric.WithDescription("Catalog listing query latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}
	matched, err := meter.Int64Histogram("catalog.query.matched",
		metric.WithDescription("Products matching a listing query"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create matched histogram")
	}

	return &Engine{
		reader:   reader,
		tracer:   tp.Tracer(instrumentationName),
		queries:  queries,
		duration: duration,
		matched:  matched,
	}, nil
}

// List returns the page of products selected by c.
func (e *Engine) List(ctx context.Context, c Criteria) (_ *Page, rerr error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "catalog.List", trace.WithAttributes(
		attribute.String("catalog.sort", string(c.Sort)),
		attribute.Int("catalog.page", c.Page),
		attribute.Int("catalog.page_size", c.PageSize),
	))
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("sort", string(c.Sort)),
			attribute.Bool("error", rerr != nil),
		)
		e.queries.Add(ctx, 1, attrs)
		e.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		endSpan(span, rerr)
	}()

	joined, err := e.joinAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := Filter(joined, c)
	Sort(filtered, c.Sort)
	page := Paginate(filtered, c.Page, c.PageSize)

	e.matched.Record(ctx, int64(page.Pagination.TotalProducts))
	span.SetAttributes(attribute.Int("catalog.total", page.Pagination.TotalProducts))

	return &page, nil
}

// Get returns a single joined product.
func (e *Engine) Get(ctx context.Context, id string) (_ *JoinedProduct, rerr error) {
	ctx, span := e.tracer.Start(ctx, "catalog.Get", trace.WithAttributes(
		attribute.String("catalog.product_id", id),
	))
	defer func() { endSpan(span, rerr) }()

	snap, err := e.reader.ProductSnapshot(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "read product")
	}
	joined, err := Join(snap)
	if err != nil {
		return nil, err
	}
	if len(joined) == 0 {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	return &joined[0], nil
}

func (e *Engine) joinAll(ctx context.Context) ([]JoinedProduct, error) {
	snap, err := e.reader.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	return Join(snap)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
