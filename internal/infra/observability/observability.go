// Package observability holds the presale's span tracer and Prometheus metrics.
//
// This provides:
//   - Trace spans around purchase, referral bind and gacha roll
//   - Trace ID propagation through context.Context
//   - Business and store metrics exported on /metrics
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans
// ═══════════════════════════════════════════════════════════════════════════

// Span represents one traced operation.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in memory for /api/debug/spans.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 1_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 1_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a span. The returned context carries the span as parent
// for nested calls. A nil Tracer is valid and records nothing.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) (context.Context, *Span) {
	if t == nil || !t.enabled {
		return ctx, &Span{Operation: operation}
	}

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
	}
	span := &Span{
		TraceID:   traceID,
		SpanID:    uuid.NewString(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
	return context.WithValue(ctx, spanIDKey, span.SpanID), span
}

// EndSpan completes a span, records it and observes its duration.
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		TraceErrors.Inc()
	}
	TracesRecorded.Inc()
	OperationDuration.WithLabelValues(span.Operation).Observe(span.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans, oldest first.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "presale-trace-id"
	spanIDKey  contextKey = "presale-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID, or "" if none is set.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Purchase Metrics ───────────────────────────────────────────────────────

// PurchasesCompleted counts committed purchases.
var PurchasesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "purchase",
	Name:      "completed_total",
	Help:      "Total purchases committed to the ledger.",
})

// PurchaseVolume sums committed purchase amounts in TON.
var PurchaseVolume = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "purchase",
	Name:      "volume_ton_total",
	Help:      "Total TON paid across committed purchases.",
})

// PaymentFailures counts failed payment submissions by reason.
var PaymentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "payment",
	Name:      "failures_total",
	Help:      "Payment submissions that did not confirm, by reason.",
}, []string{"reason"})

// ─── Referral Metrics ───────────────────────────────────────────────────────

// ReferralBinds counts bind attempts by outcome.
var ReferralBinds = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "referral",
	Name:      "binds_total",
	Help:      "Referral bind attempts by result.",
}, []string{"result"})

// ReferralPromotions counts referees entering the valid or eligible tier.
var ReferralPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "referral",
	Name:      "promotions_total",
	Help:      "Referees promoted into a tier.",
}, []string{"tier"})

// FeedersGranted counts Feeders credited by referral rewards.
var FeedersGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "referral",
	Name:      "feeders_granted_total",
	Help:      "Total Feeders credited to referrers and buyers.",
})

// ─── Gacha Metrics ──────────────────────────────────────────────────────────

// GachaDraws counts committed draws by rarity.
var GachaDraws = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "gacha",
	Name:      "draws_total",
	Help:      "Committed gacha draws by rarity.",
}, []string{"rarity"})

// PityTriggers counts draws forced by a pity counter.
var PityTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "gacha",
	Name:      "pity_triggers_total",
	Help:      "Draws whose outcome was forced by pity, by counter.",
}, []string{"counter"})

// ─── Store Metrics ──────────────────────────────────────────────────────────

// StoreConflicts counts retried store transactions.
var StoreConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "store",
	Name:      "conflicts_total",
	Help:      "Store transactions retried after a version conflict or busy database.",
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// OperationDuration observes traced operation latency.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "presale",
	Subsystem: "traces",
	Name:      "operation_seconds",
	Help:      "Duration of traced operations.",
	Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
}, []string{"operation"})

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presale",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
