package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AutomationAction captures one action the service took on a user's
// mailbox or calendar, for audit logging. Every mutation driven by
// automation (rule action, cold email block, auto-archive, event
// creation) produces one record.
//
// # Privacy Considerations
//
// The UserEmail field contains PII. When logging, consider:
//   - Using UserDomain() to get only the domain for metrics/general logs
//   - Only logging full email in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type AutomationAction struct {
	// Stage is the pipeline stage that acted (rules, cold_email,
	// category, reply_tracker, event_detect, newsletter).
	Stage string

	// Action is the concrete action taken (archive, label, reply, block,
	// create_event, unsubscribe, ...).
	Action string

	// User identity
	UserEmail string

	// Target of the action
	RuleName  string
	MessageID string
	ThreadID  string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// UserDomain returns the domain portion of the user's email for
// lower-cardinality logging.
func (a *AutomationAction) UserDomain() string {
	return AccountDomain(a.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (a *AutomationAction) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with cardinality-controlled values
// (user_domain). For full audit logging, use LogAuditAttrs.
func (a *AutomationAction) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("stage", a.Stage),
		slog.String("action", a.Action),
		slog.String("user_domain", a.UserDomain()),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if a.RuleName != "" {
		attrs = append(attrs, slog.String("rule", a.RuleName))
	}
	if a.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", a.MessageID))
	}
	if a.ThreadID != "" {
		attrs = append(attrs, slog.String("thread_id", a.ThreadID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging,
// including the user's full email.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored securely with
// appropriate access controls and retained per compliance requirements.
func (a *AutomationAction) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("stage", a.Stage),
		slog.String("action", a.Action),
		slog.String("user", a.UserEmail),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if a.RuleName != "" {
		attrs = append(attrs, slog.String("rule", a.RuleName))
	}
	if a.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", a.MessageID))
	}
	if a.ThreadID != "" {
		attrs = append(attrs, slog.String("thread_id", a.ThreadID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// NewAutomationAction creates an AutomationAction with timing started.
// Call Complete() when the action finishes.
func NewAutomationAction(stage, action string) *AutomationAction {
	return &AutomationAction{
		Stage:     stage,
		Action:    action,
		StartTime: time.Now(),
	}
}

// WithUser sets the user identity.
func (a *AutomationAction) WithUser(email string) *AutomationAction {
	a.UserEmail = email
	return a
}

// WithRule sets the rule that triggered the action.
func (a *AutomationAction) WithRule(name string) *AutomationAction {
	a.RuleName = name
	return a
}

// WithTarget sets the message and thread the action applied to.
func (a *AutomationAction) WithTarget(messageID, threadID string) *AutomationAction {
	a.MessageID = messageID
	a.ThreadID = threadID
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *AutomationAction) WithSpanContext(ctx context.Context) *AutomationAction {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// Complete marks the action as finished and calculates duration.
func (a *AutomationAction) Complete(success bool, err error) *AutomationAction {
	a.Duration = time.Since(a.StartTime)
	a.Success = success
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// CompleteWithError marks the action as failed with the given error.
func (a *AutomationAction) CompleteWithError(err error) *AutomationAction {
	return a.Complete(false, err)
}

// CompleteSuccess marks the action as successful.
func (a *AutomationAction) CompleteSuccess() *AutomationAction {
	return a.Complete(true, nil)
}

// AuditLogger provides structured audit logging for automation actions.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. By default PII is not
// included; anonymized identifiers are used instead.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given
// configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogAction logs an automation action. When the logger is configured
// with IncludePII, full user emails are logged; otherwise only
// domain-based identifiers are used.
func (al *AuditLogger) LogAction(a *AutomationAction) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = a.LogAuditAttrs()
	} else {
		attrs = a.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("automation_action", args...)
	} else {
		al.logger.Warn("automation_action_failed", args...)
	}
}

// LogAudit logs an automation action with full audit details including
// PII, regardless of the IncludePII configuration.
//
// SECURITY: Ensure audit logs are routed to secure storage with
// appropriate access controls.
func (al *AuditLogger) LogAudit(a *AutomationAction) {
	if !al.enabled {
		return
	}

	attrs := a.LogAuditAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("automation_audit", args...)
}
