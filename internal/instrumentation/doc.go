// Package instrumentation provides OpenTelemetry instrumentation for
// the inboxzero service.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth:
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// LLM:
//   - llm_requests_total: Counter of model calls by operation and status
//   - llm_request_duration_seconds: Histogram of model call durations
//   - llm_tokens_total: Counter of tokens consumed by operation and kind (prompt/completion)
//
// Automation:
//   - rule_executions_total: Counter of rule executions by action and status
//   - cold_emails_total: Counter of cold email decisions by result
//   - event_suggestions_total: Counter of calendar event suggestions by outcome
//
// # Tracing
//
// Spans are created for HTTP request handling, pipeline stages
// (stage.<name>), Google API calls (google.<service>.<operation>) and
// LLM calls.
//
// # Configuration
//
// Environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxzero)
//
// Audit logging records every automation action taken on a user's
// mailbox; see AutomationAction and AuditLogger.
package instrumentation
