package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestPromotionKey(t *testing.T) {
	key := model.PromotionKey("user-1", "11111111-2222-3333-4444-555555555555")
	gt.Value(t, key).Equal("user-1:11111111-2222-3333-4444-555555555555")
}

func TestPromotionPayloadTurnRange(t *testing.T) {
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	t.Run("with turns", func(t *testing.T) {
		payload := &model.PromotionPayload{
			OwnerID:    "user-1",
			PromotedAt: base.Add(time.Hour),
			Turns: []model.Turn{
				{Role: types.TurnRoleUser, Text: "hello", Timestamp: base},
				{Role: types.TurnRoleAssistant, Text: "hi", Timestamp: base.Add(time.Minute)},
			},
		}
		first, last := payload.TurnRange()
		gt.Value(t, first).Equal(base)
		gt.Value(t, last).Equal(base.Add(time.Minute))
	})

	t.Run("empty buffer falls back to promotion time", func(t *testing.T) {
		payload := &model.PromotionPayload{PromotedAt: base}
		first, last := payload.TurnRange()
		gt.Value(t, first).Equal(base)
		gt.Value(t, last).Equal(base)
	})
}

func TestPromotionPayloadTranscript(t *testing.T) {
	payload := &model.PromotionPayload{
		Turns: []model.Turn{
			{Role: types.TurnRoleUser, Text: "What is soil pH?"},
			{Role: types.TurnRoleAssistant, Text: "It affects nutrient availability."},
		},
	}
	gt.Value(t, payload.Transcript()).
		Equal("user: What is soil pH?\nassistant: It affects nutrient availability.\n")
}

func TestSessionTail(t *testing.T) {
	session := model.NewSession("user-1")
	base := time.Now()
	for i := 0; i < 5; i++ {
		session.Turns = append(session.Turns, model.Turn{
			Role:      types.TurnRoleUser,
			Text:      "turn",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	gt.Array(t, session.Tail(3)).Length(3)
	gt.Value(t, session.Tail(3)[2].Timestamp).Equal(base.Add(4 * time.Second))
	gt.Array(t, session.Tail(0)).Length(5)
	gt.Array(t, session.Tail(10)).Length(5)

	// Tail returns a copy, not a view into the buffer
	tail := session.Tail(1)
	tail[0].Text = "mutated"
	gt.Value(t, session.Turns[4].Text).Equal("turn")
}

func TestRetrievalQueryValidate(t *testing.T) {
	valid := func() *model.RetrievalQuery {
		return &model.RetrievalQuery{
			Text:                "how does pH affect crops",
			TargetCorpora:       []types.CorpusID{"documents"},
			TopK:                10,
			SimilarityThreshold: 0.7,
			Alpha:               0.6,
		}
	}

	gt.NoError(t, valid().Validate())

	q := valid()
	q.TargetCorpora = nil
	gt.Error(t, q.Validate())

	q = valid()
	q.TopK = 0
	gt.Error(t, q.Validate())

	q = valid()
	q.Alpha = 1.2
	gt.Error(t, q.Validate())

	q = valid()
	q.SimilarityThreshold = -0.1
	gt.Error(t, q.Validate())
}

func TestRetrievalQueryLexicalQuery(t *testing.T) {
	q := &model.RetrievalQuery{Text: "soil pH"}
	gt.Value(t, q.LexicalQuery()).Equal("soil pH")

	q.LexicalText = "soil pH acidity alkaline"
	gt.Value(t, q.LexicalQuery()).Equal("soil pH acidity alkaline")
}
