package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

var (
	multimodalMarkers = []string{
		"image", "picture", "photo", "diagram", "screenshot", "chart", "figure", "video",
	}
	conversationalMarkers = []string{
		"we discussed", "we talked", "you said", "you told", "you mentioned",
		"earlier", "last time", "previously", "remind me", "our conversation",
	}
	analyticalMarkers = []string{
		"compare", "comparison", "analyze", "analysis", "why", "trend",
		"versus", " vs ", "difference between", "pros and cons", "trade-off", "tradeoff",
	}
)

// RuleClassifier assigns a query class from surface features of the
// query text. It is total: every input maps to some class.
type RuleClassifier struct{}

var _ interfaces.Classifier = &RuleClassifier{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(ctx context.Context, text string) types.QueryClass {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, multimodalMarkers):
		return types.QueryClassMultimodal
	case containsAny(lower, conversationalMarkers):
		return types.QueryClassConversational
	case containsAny(lower, analyticalMarkers):
		return types.QueryClassAnalytical
	default:
		return types.QueryClassFactual
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

const classifierPrompt = `You are a query classifier for a retrieval system.
Classify the query into exactly one class:
- factual: asks for a specific fact from documents
- conversational: refers back to an earlier conversation with the assistant
- analytical: asks for comparison, reasoning, or trend analysis
- multimodal: asks about images, diagrams, or other non-text media`

// LLMClassifier classifies through a gollem LLM client and falls back to
// the rule classifier whenever the model call or its output is unusable,
// keeping classification total.
type LLMClassifier struct {
	llmClient gollem.LLMClient
	fallback  *RuleClassifier
}

var _ interfaces.Classifier = &LLMClassifier{}

func NewLLMClassifier(llmClient gollem.LLMClient) *LLMClassifier {
	return &LLMClassifier{
		llmClient: llmClient,
		fallback:  NewRuleClassifier(),
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) types.QueryClass {
	schema := &gollem.Parameter{
		Title:       "QueryClassification",
		Type:        gollem.TypeObject,
		Description: "Classification of a retrieval query",
		Properties: map[string]*gollem.Parameter{
			"class": {
				Type:        gollem.TypeString,
				Description: "One of: factual, conversational, analytical, multimodal",
			},
		},
		Required: []string{"class"},
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(classifierPrompt),
	)
	if err != nil {
		logging.From(ctx).Warn("failed to create classifier session, using rules", "error", err)
		return c.fallback.Classify(ctx, text)
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(text))
	if err != nil || len(resp.Texts) == 0 {
		logging.From(ctx).Warn("classifier call failed, using rules", "error", err)
		return c.fallback.Classify(ctx, text)
	}

	var out struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(resp.Texts[0]), &out); err != nil {
		logging.From(ctx).Warn("failed to parse classifier response, using rules",
			"error", err, "response", resp.Texts[0])
		return c.fallback.Classify(ctx, text)
	}

	class, err := types.ParseQueryClass(strings.ToLower(strings.TrimSpace(out.Class)))
	if err != nil {
		return c.fallback.Classify(ctx, text)
	}

	return class
}
