package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/inboxzero/inboxzero/internal/instrumentation"
)

// Client calls the OpenAI API with structured outputs.
type Client struct {
	api     openai.Client
	model   string
	metrics *instrumentation.Metrics
}

// New creates an LLM client.
func New(apiKey, model string) *Client {
	return &Client{
		api:     openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(3)),
		model:   model,
		metrics: &instrumentation.Metrics{},
	}
}

// WithMetrics sets the metrics recorder for request count, latency,
// and token usage. Returns the client for chaining at construction.
func (c *Client) WithMetrics(m *instrumentation.Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// complete runs one chat completion with a JSON schema response format
// and unmarshals the reply into out. The schema name doubles as the
// operation label on metrics.
func (c *Client) complete(ctx context.Context, system, user, schemaName string, schema map[string]any, out any) error {
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		c.metrics.RecordLLMRequest(ctx, schemaName, instrumentation.StatusError, time.Since(start), 0, 0)
		return fmt.Errorf("chat completion %s: %w", schemaName, err)
	}

	c.metrics.RecordLLMRequest(ctx, schemaName, instrumentation.StatusSuccess, time.Since(start),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion %s returned no choices", schemaName)
	}

	return decodeResponse(resp.Choices[0].Message.Content, out)
}

func decodeResponse(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

// ChooseRule asks the model which of the offered rules matches the
// email. A reply naming a rule outside the offered set is treated as no
// match rather than an error.
func (c *Client) ChooseRule(ctx context.Context, email EmailSummary, rules []RuleOption) (*RuleChoice, error) {
	if len(rules) == 0 {
		return &RuleChoice{NoMatch: true, Reason: "no rules configured"}, nil
	}

	var choice RuleChoice
	err := c.complete(ctx, chooseRuleSystem, chooseRulePrompt(email, rules), "rule_choice", chooseRuleSchema, &choice)
	if err != nil {
		return nil, err
	}

	return normalizeRuleChoice(&choice, rules), nil
}

// normalizeRuleChoice rejects hallucinated rule names.
func normalizeRuleChoice(choice *RuleChoice, rules []RuleOption) *RuleChoice {
	if choice.NoMatch {
		choice.RuleName = ""
		choice.Args = nil
		return choice
	}
	for _, r := range rules {
		if strings.EqualFold(r.Name, choice.RuleName) {
			choice.RuleName = r.Name
			return choice
		}
	}
	return &RuleChoice{NoMatch: true, Reason: fmt.Sprintf("model chose unknown rule %q", choice.RuleName)}
}

// DetectColdEmail asks the model whether the email is an unsolicited
// pitch. senderContext carries signals gathered outside the model (for
// example "user has never emailed this sender").
func (c *Client) DetectColdEmail(ctx context.Context, email EmailSummary, senderContext string) (*ColdEmailVerdict, error) {
	var verdict ColdEmailVerdict
	err := c.complete(ctx, coldEmailSystem, coldEmailPrompt(email, senderContext), "cold_email_verdict", coldEmailSchema, &verdict)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// CategorizeSenders assigns one of the allowed categories to each
// sender in a single batch call. Replies for senders that were not
// asked about are dropped; categories outside the allowed set degrade
// to "unknown".
func (c *Client) CategorizeSenders(ctx context.Context, senders []SenderSample, categories []string) ([]SenderCategory, error) {
	if len(senders) == 0 {
		return nil, nil
	}

	var reply struct {
		Senders []SenderCategory `json:"senders"`
	}
	err := c.complete(ctx, categorizeSystem, categorizePrompt(senders, categories), "sender_categories", categorizeSchema, &reply)
	if err != nil {
		return nil, err
	}

	return normalizeSenderCategories(reply.Senders, senders, categories), nil
}

func normalizeSenderCategories(got []SenderCategory, asked []SenderSample, categories []string) []SenderCategory {
	allowed := make(map[string]string, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(c)] = c
	}
	wanted := make(map[string]bool, len(asked))
	for _, s := range asked {
		wanted[strings.ToLower(s.Address)] = true
	}

	var out []SenderCategory
	seen := make(map[string]bool)
	for _, sc := range got {
		addr := strings.ToLower(strings.TrimSpace(sc.Address))
		if !wanted[addr] || seen[addr] {
			continue
		}
		seen[addr] = true

		category, ok := allowed[strings.ToLower(sc.Category)]
		if !ok {
			category = FallbackCategory
		}
		out = append(out, SenderCategory{Address: addr, Category: category})
	}
	return out
}

// ExtractEventCandidate asks the model to pull a calendar event
// proposal out of the email. Returns a candidate with HasEvent false
// when the email proposes nothing.
func (c *Client) ExtractEventCandidate(ctx context.Context, email EmailSummary, now time.Time, timezone string) (*EventCandidate, error) {
	var candidate EventCandidate
	err := c.complete(ctx, extractEventSystem, extractEventPrompt(email, now, timezone), "event_candidate", extractEventSchema, &candidate)
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}
