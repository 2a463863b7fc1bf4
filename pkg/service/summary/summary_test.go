package summary_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/summary"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"a concise summary"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func testPayload(texts ...string) *model.PromotionPayload {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	payload := &model.PromotionPayload{
		OwnerID:    "user-1",
		SessionID:  types.NewSessionID(),
		PromotedAt: base,
	}
	for i, text := range texts {
		role := types.TurnRoleUser
		if i%2 == 1 {
			role = types.TurnRoleAssistant
		}
		payload.Turns = append(payload.Turns, model.Turn{
			Role:      role,
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return payload
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("LLM summary is returned trimmed", func(t *testing.T) {
		mock := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{"  the user rotated the key \n"}}, nil
					},
				}, nil
			},
		}
		client, err := summary.New(mock)
		gt.NoError(t, err)

		got, err := client.Summarize(ctx, testPayload("how do I rotate the key", "use the kms console"))
		gt.NoError(t, err)
		gt.Value(t, got).Equal("the user rotated the key")
	})

	t.Run("Empty payload summarizes to an empty string", func(t *testing.T) {
		client, err := summary.New(&mockLLMClient{})
		gt.NoError(t, err)

		got, err := client.Summarize(ctx, testPayload())
		gt.NoError(t, err)
		gt.Value(t, got).Equal("")
	})

	t.Run("Session failure falls back to truncation", func(t *testing.T) {
		mock := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, errors.New("model unavailable")
			},
		}
		client, err := summary.New(mock, summary.WithTruncateLimit(10))
		gt.NoError(t, err)

		payload := testPayload("a very long first question about key rotation")
		got, err := client.Summarize(ctx, payload)
		gt.NoError(t, err)
		gt.Bool(t, strings.HasPrefix(payload.Transcript(), strings.TrimSuffix(got, "..."))).True()
	})

	t.Run("Generation failure falls back to truncation", func(t *testing.T) {
		mock := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return nil, errors.New("generation failed")
					},
				}, nil
			},
		}
		client, err := summary.New(mock, summary.WithTruncateLimit(10))
		gt.NoError(t, err)

		got, err := client.Summarize(ctx, testPayload("a very long first question about key rotation"))
		gt.NoError(t, err)
		gt.Value(t, got).Equal("user: a ve...")
	})

	t.Run("Blank response falls back to truncation", func(t *testing.T) {
		mock := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{"   "}}, nil
					},
				}, nil
			},
		}
		client, err := summary.New(mock, summary.WithTruncateLimit(10))
		gt.NoError(t, err)

		got, err := client.Summarize(ctx, testPayload("a very long first question"))
		gt.NoError(t, err)
		gt.Value(t, got).Equal("user: a ve...")
	})

	t.Run("Nil LLM client is rejected", func(t *testing.T) {
		_, err := summary.New(nil)
		gt.Error(t, err)
	})
}

func TestTruncator(t *testing.T) {
	ctx := context.Background()

	t.Run("Short transcripts pass through verbatim", func(t *testing.T) {
		truncator := summary.NewTruncator(1000)

		payload := testPayload("short question", "short answer")
		got, err := truncator.Summarize(ctx, payload)
		gt.NoError(t, err)
		gt.Value(t, got).Equal(payload.Transcript())
	})

	t.Run("Long transcripts are cut at the rune limit", func(t *testing.T) {
		truncator := summary.NewTruncator(12)

		got, err := truncator.Summarize(ctx, testPayload("質問の内容はとても長いです"))
		gt.NoError(t, err)
		gt.Value(t, got).Equal("user: 質問の内容は...")
	})
}
