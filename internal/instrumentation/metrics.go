package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrAction    = "action"
	attrKind      = "kind"
	attrAccount   = "account"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthTokenRefreshTotal metric.Int64Counter

	// LLM metrics
	llmRequestsTotal   metric.Int64Counter
	llmRequestDuration metric.Float64Histogram
	llmTokensTotal     metric.Int64Counter

	// Automation metrics
	ruleExecutionsTotal   metric.Int64Counter
	coldEmailsTotal       metric.Int64Counter
	eventSuggestionsTotal metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments registered.
// The detailedLabels parameter controls whether high-cardinality labels
// (account domains) are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create oauth_token_refresh_total counter: %w", err)
	}

	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_requests_total counter: %w", err)
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_request_duration_seconds histogram: %w", err)
	}

	m.llmTokensTotal, err = meter.Int64Counter(
		"llm_tokens_total",
		metric.WithDescription("Total number of LLM tokens consumed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_tokens_total counter: %w", err)
	}

	m.ruleExecutionsTotal, err = meter.Int64Counter(
		"rule_executions_total",
		metric.WithDescription("Total number of automation rule executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule_executions_total counter: %w", err)
	}

	m.coldEmailsTotal, err = meter.Int64Counter(
		"cold_emails_total",
		metric.WithDescription("Total number of cold email decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cold_emails_total counter: %w", err)
	}

	m.eventSuggestionsTotal, err = meter.Int64Counter(
		"event_suggestions_total",
		metric.WithDescription("Total number of calendar event suggestions"),
		metric.WithUnit("{suggestion}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create event_suggestions_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status
// code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API operation.
//
// Parameters:
//   - service: Google service name (gmail, calendar, people)
//   - operation: Operation type (list, get, create, update, delete, send, ...)
//   - status: "success" or "error"
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordLLMRequest records one model call with its operation name
// (choose_rule, detect_cold_email, categorize_senders, extract_event),
// status, duration and token usage.
func (m *Metrics) RecordLLMRequest(ctx context.Context, operation, status string, duration time.Duration, promptTokens, completionTokens int64) {
	if m.llmRequestsTotal == nil || m.llmRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.llmRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if m.llmTokensTotal != nil {
		if promptTokens > 0 {
			m.llmTokensTotal.Add(ctx, promptTokens, metric.WithAttributes(
				attribute.String(attrOperation, operation),
				attribute.String(attrKind, "prompt"),
			))
		}
		if completionTokens > 0 {
			m.llmTokensTotal.Add(ctx, completionTokens, metric.WithAttributes(
				attribute.String(attrOperation, operation),
				attribute.String(attrKind, "completion"),
			))
		}
	}
}

// RecordRuleExecution records one rule execution by action type and
// resulting status (applied, pending, error). The account domain is
// added only when detailed labels are enabled.
func (m *Metrics) RecordRuleExecution(ctx context.Context, action, status, accountEmail string) {
	if m.ruleExecutionsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrAction, action),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && accountEmail != "" {
		attrs = append(attrs, attribute.String(attrAccount, AccountDomain(accountEmail)))
	}

	m.ruleExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordColdEmail records one cold email decision. Result should be
// one of: "blocked", "allowed", "not_cold".
func (m *Metrics) RecordColdEmail(ctx context.Context, result string) {
	if m.coldEmailsTotal == nil {
		return // Instrumentation not initialized
	}

	m.coldEmailsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordEventSuggestion records one calendar event suggestion outcome.
// Result should be one of: "suggested", "created", "dismissed".
func (m *Metrics) RecordEventSuggestion(ctx context.Context, result string) {
	if m.eventSuggestionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.eventSuggestionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}
