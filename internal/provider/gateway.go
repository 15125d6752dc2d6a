package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const defaultTimeout = 10 * time.Second

// OutcomeRecorder receives one outcome per provider call.
type OutcomeRecorder interface {
	Record(provider string, delivered bool)
}

// Result is the joined outcome of one fan-out.
type Result struct {
	Quotes    []domain.Quote
	Errors    []*ProviderError
	Succeeded int
	Failed    int
}

// AllFailed reports whether at least one call was made and none succeeded.
func (r Result) AllFailed() bool {
	return r.Failed > 0 && r.Succeeded == 0
}

// Gateway fans a request out to every registered provider.
type Gateway struct {
	registry *Registry
	timeout  time.Duration
	recorder OutcomeRecorder
	log      *slog.Logger
	tracer   trace.Tracer
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout sets the per-provider call timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRecorder sets where call outcomes are reported.
func WithRecorder(r OutcomeRecorder) GatewayOption {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.log = l
	}
}

// NewGateway creates a gateway over reg.
func NewGateway(reg *Registry, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry: reg,
		timeout:  defaultTimeout,
		log:      slog.Default(),
		tracer:   otel.Tracer("github.com/donaldgifford/flight-price-tracker/internal/provider"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Providers returns the registered provider names.
func (g *Gateway) Providers() []string {
	return g.registry.Names()
}

// Fetch calls every provider concurrently for each request and joins the
// results. Individual failures are recorded in the Result, never returned.
func (g *Gateway) Fetch(ctx context.Context, reqs ...QuoteRequest) Result {
	var (
		mu  sync.Mutex
		res Result
	)

	var eg errgroup.Group
	for _, req := range reqs {
		for _, p := range g.registry.All() {
			eg.Go(func() error {
				quotes, perr := g.call(ctx, p, req)

				mu.Lock()
				defer mu.Unlock()
				if perr != nil {
					res.Failed++
					res.Errors = append(res.Errors, perr)
					return nil
				}
				res.Succeeded++
				res.Quotes = append(res.Quotes, quotes...)
				return nil
			})
		}
	}
	_ = eg.Wait()

	return res
}

func (g *Gateway) call(ctx context.Context, p Provider, req QuoteRequest) (quotes []domain.Quote, perr *ProviderError) {
	name := p.Name()

	ctx, span := g.tracer.Start(ctx, "provider.fetch", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("route", req.Route.String()),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			quotes = nil
			perr = &ProviderError{Provider: name, Kind: KindUnavailable, Err: fmt.Errorf("panic: %v", r)}
		}
		g.observe(name, time.Since(start), quotes, perr)
		if perr != nil {
			span.SetStatus(codes.Error, perr.Error())
			span.SetAttributes(attribute.String("error.kind", string(perr.Kind)))
		}
	}()

	quotes, err := p.FetchQuotes(ctx, req)
	return quotes, Classify(name, err)
}

func (g *Gateway) observe(name string, elapsed time.Duration, quotes []domain.Quote, perr *ProviderError) {
	metrics.ProviderLatency.WithLabelValues(name).Observe(elapsed.Seconds())

	result := "ok"
	if perr != nil {
		result = string(perr.Kind)
		if perr.Kind == KindRateLimited {
			metrics.ProviderBudgetExhaustedTotal.WithLabelValues(name).Inc()
		}
		g.log.Warn("provider call failed",
			"provider", name,
			"kind", perr.Kind,
			"error", perr.Err,
			"elapsed", elapsed,
		)
	}
	metrics.ProviderCallsTotal.WithLabelValues(name, result).Inc()

	if p, ok := g.registry.Get(name); ok {
		if b, ok := p.(interface{ Budget() *Budget }); ok && b.Budget() != nil {
			metrics.ProviderDailyUsage.WithLabelValues(name).Set(float64(b.Budget().DailyCount()))
		}
	}

	if g.recorder != nil {
		g.recorder.Record(name, perr == nil && len(quotes) > 0)
	}
}
