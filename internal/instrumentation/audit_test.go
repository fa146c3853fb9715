package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestAutomationActionComplete(t *testing.T) {
	action := NewAutomationAction("rules", "archive").
		WithUser("jane@example.com").
		WithRule("archive-newsletters").
		WithTarget("msg-1", "thread-1")

	if action.StartTime.IsZero() {
		t.Error("expected start time to be set")
	}

	action.Complete(true, nil)

	if !action.Success {
		t.Error("expected action to be successful")
	}
	if action.Duration < 0 {
		t.Errorf("expected non-negative duration, got %v", action.Duration)
	}
	if action.Status() != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, action.Status())
	}
}

func TestAutomationActionCompleteWithError(t *testing.T) {
	action := NewAutomationAction("cold_email", "block").
		CompleteWithError(errors.New("label not found"))

	if action.Success {
		t.Error("expected action to be failed")
	}
	if action.Error != "label not found" {
		t.Errorf("expected error 'label not found', got %q", action.Error)
	}
	if action.Status() != StatusError {
		t.Errorf("expected status %q, got %q", StatusError, action.Status())
	}
}

func TestAutomationActionUserDomain(t *testing.T) {
	action := NewAutomationAction("rules", "reply").WithUser("jane@example.com")
	if action.UserDomain() != "example.com" {
		t.Errorf("expected domain 'example.com', got %q", action.UserDomain())
	}

	action = NewAutomationAction("rules", "reply")
	if action.UserDomain() != "unknown" {
		t.Errorf("expected domain 'unknown' for missing email, got %q", action.UserDomain())
	}
}

func TestLogAttrsExcludesPII(t *testing.T) {
	action := NewAutomationAction("rules", "archive").
		WithUser("jane@example.com").
		WithRule("archive-newsletters").
		WithTarget("msg-1", "thread-1").
		CompleteSuccess()

	for _, attr := range action.LogAttrs() {
		if attr.Key == "user" {
			t.Error("LogAttrs must not include the full user email")
		}
		if attr.Key == "user_domain" && attr.Value.String() != "example.com" {
			t.Errorf("expected user_domain 'example.com', got %q", attr.Value.String())
		}
	}
}

func TestLogAuditAttrsIncludesPII(t *testing.T) {
	action := NewAutomationAction("rules", "archive").
		WithUser("jane@example.com").
		CompleteSuccess()

	found := false
	for _, attr := range action.LogAuditAttrs() {
		if attr.Key == "user" && attr.Value.String() == "jane@example.com" {
			found = true
		}
	}
	if !found {
		t.Error("LogAuditAttrs must include the full user email")
	}
}

func auditLogOutput(t *testing.T, includePII bool, action *AutomationAction) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: includePII})

	al.LogAction(action)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return record
}

func TestAuditLoggerLogAction(t *testing.T) {
	action := NewAutomationAction("rules", "archive").
		WithUser("jane@example.com").
		WithRule("archive-newsletters").
		WithTarget("msg-1", "thread-1").
		CompleteSuccess()

	record := auditLogOutput(t, false, action)

	if record["msg"] != "automation_action" {
		t.Errorf("expected message 'automation_action', got %v", record["msg"])
	}
	if record["stage"] != "rules" {
		t.Errorf("expected stage 'rules', got %v", record["stage"])
	}
	if record["action"] != "archive" {
		t.Errorf("expected action 'archive', got %v", record["action"])
	}
	if _, hasUser := record["user"]; hasUser {
		t.Error("expected no full email without IncludePII")
	}
	if record["user_domain"] != "example.com" {
		t.Errorf("expected user_domain 'example.com', got %v", record["user_domain"])
	}
}

func TestAuditLoggerIncludePII(t *testing.T) {
	action := NewAutomationAction("newsletter", "unsubscribe").
		WithUser("jane@example.com").
		CompleteSuccess()

	record := auditLogOutput(t, true, action)

	if record["user"] != "jane@example.com" {
		t.Errorf("expected full email with IncludePII, got %v", record["user"])
	}
}

func TestAuditLoggerFailureLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger)

	al.LogAction(NewAutomationAction("rules", "reply").
		WithUser("jane@example.com").
		CompleteWithError(errors.New("send failed")))

	out := buf.String()
	if !strings.Contains(out, "automation_action_failed") {
		t.Errorf("expected failure message, got %q", out)
	}
	if !strings.Contains(out, "WARN") {
		t.Errorf("expected WARN level, got %q", out)
	}
}

func TestAuditLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	al.LogAction(NewAutomationAction("rules", "archive").CompleteSuccess())
	al.LogAudit(NewAutomationAction("rules", "archive").CompleteSuccess())

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}
}

func TestAutomationActionDurationMeasured(t *testing.T) {
	action := NewAutomationAction("event_detect", "create_event")
	time.Sleep(time.Millisecond)
	action.CompleteSuccess()

	if action.Duration <= 0 {
		t.Errorf("expected positive duration, got %v", action.Duration)
	}
}
