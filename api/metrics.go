package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName            = "ttracker/api"
	importantSpanName     = "ttracker.tasks.important"
	importantEventName    = "important_tasks.request"
	importantEventDomain  = "ttracker.assignment"
	importantRoute        = "/api/tasks/important"
	observabilityEventKey = "observability.event"
)

// importantTaskMetrics records one important-tasks request as a span and a
// structured observability log entry.
type importantTaskMetrics struct {
	logger           *log.Logger
	span             trace.Span
	start            time.Time
	authDuration     time.Duration
	snapshotDuration time.Duration
	assignDuration   time.Duration
	encodeDuration   time.Duration
	tasks            int
	employees        int
	assignments      int
	errorStage       string
}

func newImportantTaskMetrics(ctx context.Context, logger *log.Logger) (*importantTaskMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, importantSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &importantTaskMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *importantTaskMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *importantTaskMetrics) ObserveSnapshot(d time.Duration) {
	if d > 0 {
		m.snapshotDuration = d
	}
}

func (m *importantTaskMetrics) ObserveAssign(d time.Duration) {
	if d > 0 {
		m.assignDuration = d
	}
}

func (m *importantTaskMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *importantTaskMetrics) SetSnapshotSize(tasks, employees int) {
	m.tasks = max(tasks, 0)
	m.employees = max(employees, 0)
}

func (m *importantTaskMetrics) SetAssignments(n int) {
	m.assignments = max(n, 0)
}

func (m *importantTaskMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *importantTaskMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", importantRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("ttracker.important.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("ttracker.important.tasks", m.tasks),
		attribute.Int("ttracker.important.employees", m.employees),
		attribute.Int("ttracker.important.assignments", m.assignments),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("ttracker.important.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.snapshotDuration > 0 {
		attrs = append(attrs, attribute.Float64("ttracker.important.snapshot_ms", durationToMillis(m.snapshotDuration)))
	}
	if m.assignDuration > 0 {
		attrs = append(attrs, attribute.Float64("ttracker.important.assign_ms", durationToMillis(m.assignDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("ttracker.important.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("ttracker.important.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the span and emits the observability entry.
func (m *importantTaskMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	attrs := m.attributes(status, err)
	severityText, severityNumber := severityForStatus(status, err)

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", importantEventName),
			attribute.String("event.domain", importantEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		}, attrs...)
		m.span.AddEvent(observabilityEventKey, trace.WithAttributes(eventAttrs...))
		if err != nil || status >= http.StatusInternalServerError {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      importantEventName,
		"event.domain":    importantEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityNumber), observabilityEventKey)
}

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(n int) log.Level {
	switch {
	case n >= 17:
		return log.ErrorLevel
	case n >= 13:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
