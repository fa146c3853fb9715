package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxzero/inboxzero/internal/llm"
	"github.com/inboxzero/inboxzero/internal/store"
)

// fakeChooser returns a scripted rule choice.
type fakeChooser struct {
	choice *llm.RuleChoice
	calls  int
	gotOptions []llm.RuleOption
}

func (f *fakeChooser) ChooseRule(ctx context.Context, email llm.EmailSummary, rules []llm.RuleOption) (*llm.RuleChoice, error) {
	f.calls++
	f.gotOptions = rules
	if f.choice == nil {
		return &llm.RuleChoice{NoMatch: true}, nil
	}
	return f.choice, nil
}

func newTestEngine(t *testing.T, chooser RuleChooser) (*Engine, *store.Store, *fakeMailer, string) {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	account, err := s.CreateAccount(ctx, store.Account{Email: "jane@example.com"})
	require.NoError(t, err)

	mailer := newFakeMailer()
	engine := NewEngine(s, chooser, NewExecutor(mailer, testLogger()), testLogger())
	return engine, s, mailer, account.ID
}

func mustCreateRule(t *testing.T, s *store.Store, accountID string, r Rule) Rule {
	t.Helper()
	r.AccountID = accountID
	row, err := r.ToRow()
	require.NoError(t, err)
	created, err := s.CreateRule(context.Background(), row)
	require.NoError(t, err)
	r.ID = created.ID
	return r
}

func TestEngineStaticMatchExecutes(t *testing.T) {
	chooser := &fakeChooser{}
	engine, s, mailer, accountID := newTestEngine(t, chooser)

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Newsletters",
		Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   true,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)

	assert.True(t, outcome.Matched)
	assert.Equal(t, store.ExecutionApplied, outcome.Status)
	assert.Equal(t, []string{"t1"}, mailer.archived)
	assert.Zero(t, chooser.calls, "static match must not consult the model")
}

func TestEngineNonAutomatedRecordsPending(t *testing.T) {
	engine, s, mailer, accountID := newTestEngine(t, &fakeChooser{})

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Newsletters",
		Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   false,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)

	assert.Equal(t, store.ExecutionPending, outcome.Status)
	assert.Empty(t, mailer.archived, "pending rules must not execute")

	executions, err := s.ListExecutions(context.Background(), accountID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, store.ExecutionPending, executions[0].Status)
}

func TestEngineAICandidateChosen(t *testing.T) {
	chooser := &fakeChooser{choice: &llm.RuleChoice{
		RuleName: "Billing",
		Args:     []llm.Arg{{Name: "name", Value: "Jane"}},
	}}
	engine, s, mailer, accountID := newTestEngine(t, chooser)

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Billing",
		Conditions: []Condition{{Type: ConditionAI, Instruction: "emails about invoices"}},
		Actions:    []Action{{Type: ActionReply, Content: "Thanks {{name}}"}},
		Enabled:    true,
		Automate:   true,
	})
	mustCreateRule(t, s, accountID, Rule{
		Name:       "Recruiting",
		Conditions: []Condition{{Type: ConditionAI, Instruction: "recruiter outreach"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   true,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)

	assert.True(t, outcome.Matched)
	assert.Equal(t, "Billing", outcome.Rule.Name)
	assert.Equal(t, 1, chooser.calls, "AI candidates are batched into one call")
	assert.Len(t, chooser.gotOptions, 2)
	require.Len(t, mailer.replies, 1)
	assert.Equal(t, "Thanks Jane", mailer.replies[0])
}

func TestEngineNoMatch(t *testing.T) {
	chooser := &fakeChooser{} // replies no match
	engine, s, _, accountID := newTestEngine(t, chooser)

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Billing",
		Conditions: []Condition{{Type: ConditionAI, Instruction: "emails about invoices"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   true,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
}

func TestEngineSkipsDisabledRules(t *testing.T) {
	engine, s, mailer, accountID := newTestEngine(t, &fakeChooser{})

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Newsletters",
		Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    false,
		Automate:   true,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
	assert.Empty(t, mailer.archived)
}

func TestEngineIdempotentPerMessage(t *testing.T) {
	engine, s, mailer, accountID := newTestEngine(t, &fakeChooser{})

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Newsletters",
		Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   true,
	})

	msg := sampleMessage()
	first, err := engine.ProcessMessage(context.Background(), accountID, msg, nil)
	require.NoError(t, err)
	assert.True(t, first.Matched)

	second, err := engine.ProcessMessage(context.Background(), accountID, msg, nil)
	require.NoError(t, err)
	assert.False(t, second.Matched, "a rule runs once per message")
	assert.Len(t, mailer.archived, 1)
}

func TestEngineStaticWinsOverAI(t *testing.T) {
	chooser := &fakeChooser{choice: &llm.RuleChoice{RuleName: "Billing"}}
	engine, s, _, accountID := newTestEngine(t, chooser)

	mustCreateRule(t, s, accountID, Rule{
		Name:       "Newsletters",
		Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}},
		Actions:    []Action{{Type: ActionArchive}},
		Enabled:    true,
		Automate:   true,
	})
	mustCreateRule(t, s, accountID, Rule{
		Name:       "Billing",
		Conditions: []Condition{{Type: ConditionAI, Instruction: "invoices"}},
		Actions:    []Action{{Type: ActionMarkRead}},
		Enabled:    true,
		Automate:   true,
	})

	outcome, err := engine.ProcessMessage(context.Background(), accountID, sampleMessage(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Newsletters", outcome.Rule.Name)
	assert.Zero(t, chooser.calls)
}

func TestEngineTest(t *testing.T) {
	chooser := &fakeChooser{choice: &llm.RuleChoice{RuleName: "Billing"}}
	engine, _, _, _ := newTestEngine(t, chooser)

	t.Run("static confirmed", func(t *testing.T) {
		rule := &Rule{Name: "N", Conditions: []Condition{{Type: ConditionStatic, From: "daily.example"}}}
		matched, err := engine.Test(context.Background(), rule, sampleMessage(), nil)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("static excluded", func(t *testing.T) {
		rule := &Rule{Name: "N", Conditions: []Condition{{Type: ConditionStatic, Subject: "invoice"}}}
		matched, err := engine.Test(context.Background(), rule, sampleMessage(), nil)
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("ai consulted", func(t *testing.T) {
		rule := &Rule{Name: "Billing", Conditions: []Condition{{Type: ConditionAI, Instruction: "invoices"}}}
		matched, err := engine.Test(context.Background(), rule, sampleMessage(), nil)
		require.NoError(t, err)
		assert.True(t, matched)
	})
}
