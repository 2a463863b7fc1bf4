package router

import (
	"context"
	"strings"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// DefaultCorpus receives queries when no explicit target is configured
// for a class. Routing never returns an empty corpus list.
const DefaultCorpus = types.CorpusID("documents")

// Decision is the routing outcome for a single query. Tiers lists the
// memory tiers that should contribute conversational context alongside
// the corpus search.
type Decision struct {
	Class       types.QueryClass
	Corpora     []types.CorpusID
	Tiers       []types.Tier
	LexicalText string
}

// HasTier reports whether the decision asks for context from the tier
func (d *Decision) HasTier(tier types.Tier) bool {
	for _, t := range d.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Router assigns each query a class and the corpora to search for it.
type Router struct {
	classifier interfaces.Classifier
	targets    map[types.QueryClass][]types.CorpusID
	defaults   []types.CorpusID
	synonyms   map[string][]string
}

type Option func(*Router)

// WithTargets sets the corpora searched for queries of the given class.
func WithTargets(class types.QueryClass, corpora ...types.CorpusID) Option {
	return func(r *Router) {
		if len(corpora) > 0 {
			r.targets[class] = corpora
		}
	}
}

// WithDefaultCorpora sets the corpora used for classes with no explicit target.
func WithDefaultCorpora(corpora ...types.CorpusID) Option {
	return func(r *Router) {
		if len(corpora) > 0 {
			r.defaults = corpora
		}
	}
}

// WithSynonyms sets the expansion table. Keys are lowercase query terms,
// values are terms appended to the lexical search text.
func WithSynonyms(synonyms map[string][]string) Option {
	return func(r *Router) {
		r.synonyms = synonyms
	}
}

func New(classifier interfaces.Classifier, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		targets:    make(map[types.QueryClass][]types.CorpusID),
		defaults:   []types.CorpusID{DefaultCorpus},
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.defaults) == 0 {
		r.defaults = []types.CorpusID{DefaultCorpus}
	}
	return r
}

// Route classifies the query and resolves its target corpora and tiers.
// The corpus list is never empty.
func (r *Router) Route(ctx context.Context, text string) *Decision {
	class := r.classifier.Classify(ctx, text).Normalize()

	corpora := r.targets[class]
	if len(corpora) == 0 {
		corpora = r.defaults
	}

	return &Decision{
		Class:       class,
		Corpora:     corpora,
		Tiers:       tiersFor(class),
		LexicalText: r.expand(text),
	}
}

// tiersFor maps a query class to the memory tiers consulted for context.
// Every class reads the live session; conversation-aware classes reach
// into the promoted tiers as well.
func tiersFor(class types.QueryClass) []types.Tier {
	switch class {
	case types.QueryClassConversational:
		return []types.Tier{types.TierSession, types.TierCache}
	case types.QueryClassAnalytical:
		return []types.Tier{types.TierSession, types.TierCache, types.TierDurable}
	default:
		return []types.Tier{types.TierSession}
	}
}

// expand appends configured synonyms so the lexical leg catches vocabulary
// mismatches between queries and documents. With no table configured the
// text passes through unchanged.
func (r *Router) expand(text string) string {
	if len(r.synonyms) == 0 {
		return text
	}

	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var extra []string
	for _, term := range strings.Fields(lower) {
		term = strings.Trim(term, ".,!?;:\"'()")
		for _, syn := range r.synonyms[term] {
			if seen[syn] || strings.Contains(lower, strings.ToLower(syn)) {
				continue
			}
			seen[syn] = true
			extra = append(extra, syn)
		}
	}
	if len(extra) == 0 {
		return text
	}
	return text + " " + strings.Join(extra, " ")
}
