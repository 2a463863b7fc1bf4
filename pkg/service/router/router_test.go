package router_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/router"
)

func TestRuleClassifier(t *testing.T) {
	ctx := context.Background()
	classifier := router.NewRuleClassifier()

	cases := []struct {
		name  string
		query string
		want  types.QueryClass
	}{
		{
			name:  "plain lookup is factual",
			query: "What is the default Firestore region?",
			want:  types.QueryClassFactual,
		},
		{
			name:  "reference to earlier conversation is conversational",
			query: "What did you say about the deployment earlier?",
			want:  types.QueryClassConversational,
		},
		{
			name:  "remind me is conversational",
			query: "Remind me which region we picked",
			want:  types.QueryClassConversational,
		},
		{
			name:  "comparison is analytical",
			query: "Compare Redis and Memcached for session storage",
			want:  types.QueryClassAnalytical,
		},
		{
			name:  "why question is analytical",
			query: "Why does the cache hit rate drop at night?",
			want:  types.QueryClassAnalytical,
		},
		{
			name:  "image question is multimodal",
			query: "Show me the architecture diagram for the ingest path",
			want:  types.QueryClassMultimodal,
		},
		{
			name:  "multimodal wins over conversational",
			query: "Find the screenshot we discussed last time",
			want:  types.QueryClassMultimodal,
		},
		{
			name:  "empty query is factual",
			query: "",
			want:  types.QueryClassFactual,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Value(t, classifier.Classify(ctx, tc.query)).Equal(tc.want)
		})
	}
}

func TestRouterTargets(t *testing.T) {
	ctx := context.Background()

	t.Run("Configured class routes to its corpora", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithTargets(types.QueryClassConversational, "conversations", "documents"),
		)

		decision := r.Route(ctx, "What did we discuss about the rollout?")
		gt.Value(t, decision.Class).Equal(types.QueryClassConversational)
		gt.Value(t, decision.Corpora).Equal([]types.CorpusID{"conversations", "documents"})
	})

	t.Run("Unconfigured class falls back to the default corpus", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier())

		decision := r.Route(ctx, "What is the retry budget?")
		gt.Value(t, decision.Class).Equal(types.QueryClassFactual)
		gt.Value(t, decision.Corpora).Equal([]types.CorpusID{router.DefaultCorpus})
	})

	t.Run("Custom default corpora apply to every unconfigured class", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithDefaultCorpora("kb", "runbooks"),
		)

		decision := r.Route(ctx, "Compare the two ingest paths")
		gt.Value(t, decision.Class).Equal(types.QueryClassAnalytical)
		gt.Value(t, decision.Corpora).Equal([]types.CorpusID{"kb", "runbooks"})
	})

	t.Run("Corpus list is never empty", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithDefaultCorpora(),
			router.WithTargets(types.QueryClassFactual),
		)

		decision := r.Route(ctx, "anything at all")
		gt.Array(t, decision.Corpora).Length(1)
		gt.Value(t, decision.Corpora[0]).Equal(router.DefaultCorpus)
	})

	t.Run("Context tiers follow the query class", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier())

		factual := r.Route(ctx, "What is the retry budget?")
		gt.Value(t, factual.Tiers).Equal([]types.Tier{types.TierSession})
		gt.Bool(t, factual.HasTier(types.TierCache)).False()

		conversational := r.Route(ctx, "What did we discuss about the rollout?")
		gt.Value(t, conversational.Tiers).Equal([]types.Tier{types.TierSession, types.TierCache})

		analytical := r.Route(ctx, "Compare the two ingest paths")
		gt.Bool(t, analytical.HasTier(types.TierCache)).True()
		gt.Bool(t, analytical.HasTier(types.TierDurable)).True()
	})
}

func TestRouterExpansion(t *testing.T) {
	ctx := context.Background()

	t.Run("No synonym table passes the text through", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier())

		decision := r.Route(ctx, "database failover procedure")
		gt.Value(t, decision.LexicalText).Equal("database failover procedure")
	})

	t.Run("Synonyms are appended to the lexical text", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithSynonyms(map[string][]string{
				"k8s": {"kubernetes"},
				"db":  {"database", "postgres"},
			}),
		)

		decision := r.Route(ctx, "restart the k8s db pods")
		gt.Value(t, decision.LexicalText).Equal("restart the k8s db pods kubernetes database postgres")
	})

	t.Run("Terms already present are not appended again", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithSynonyms(map[string][]string{
				"k8s": {"kubernetes"},
			}),
		)

		decision := r.Route(ctx, "kubernetes k8s upgrade")
		gt.Value(t, decision.LexicalText).Equal("kubernetes k8s upgrade")
	})

	t.Run("Punctuation around terms does not block expansion", func(t *testing.T) {
		r := router.New(router.NewRuleClassifier(),
			router.WithSynonyms(map[string][]string{
				"k8s": {"kubernetes"},
			}),
		)

		decision := r.Route(ctx, "what about k8s?")
		gt.Value(t, decision.LexicalText).Equal("what about k8s? kubernetes")
	})
}
