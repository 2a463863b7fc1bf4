package summary

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const defaultTruncateLimit = 512

const systemPrompt = `You are a conversation summarizer for a long-term memory system.
Summarize the conversation into a single dense paragraph.
Preserve concrete facts, names, dates, numbers, and decisions.
Write in the same language as the conversation.
Do not add commentary or information that is not in the conversation.`

// Client summarizes promotion payloads through a gollem LLM client. When
// the model call fails the transcript is truncated instead, so promotion
// always makes progress.
type Client struct {
	llmClient gollem.LLMClient
	limit     int
}

var _ interfaces.Summarizer = &Client{}

type Option func(*Client)

// WithTruncateLimit overrides the rune limit of the fallback summary
func WithTruncateLimit(limit int) Option {
	return func(c *Client) {
		c.limit = limit
	}
}

func New(llmClient gollem.LLMClient, opts ...Option) (*Client, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &Client{
		llmClient: llmClient,
		limit:     defaultTruncateLimit,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Summarize(ctx context.Context, payload *model.PromotionPayload) (string, error) {
	transcript := payload.Transcript()
	if transcript == "" {
		return "", nil
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		logging.From(ctx).Warn("failed to create summarizer session, truncating instead",
			"error", err)
		return truncate(transcript, c.limit), nil
	}

	resp, err := session.GenerateContent(ctx, gollem.Text("Summarize the following conversation:\n\n"+transcript))
	if err != nil {
		logging.From(ctx).Warn("summarization failed, truncating instead",
			"error", err)
		return truncate(transcript, c.limit), nil
	}
	if len(resp.Texts) == 0 || strings.TrimSpace(resp.Texts[0]) == "" {
		logging.From(ctx).Warn("summarizer returned no text, truncating instead")
		return truncate(transcript, c.limit), nil
	}

	return strings.TrimSpace(resp.Texts[0]), nil
}

// Truncator is a Summarizer for deployments without an LLM. It keeps the
// head of the transcript verbatim.
type Truncator struct {
	limit int
}

var _ interfaces.Summarizer = &Truncator{}

func NewTruncator(limit int) *Truncator {
	if limit <= 0 {
		limit = defaultTruncateLimit
	}
	return &Truncator{limit: limit}
}

func (t *Truncator) Summarize(ctx context.Context, payload *model.PromotionPayload) (string, error) {
	return truncate(payload.Transcript(), t.limit), nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
