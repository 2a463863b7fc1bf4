package config

import "github.com/secmon-lab/mnemosyne/pkg/domain/types"

// CorpusKind distinguishes shared document corpora from per-user
// conversation memory
type CorpusKind string

const (
	KindDocument     CorpusKind = "document"
	KindConversation CorpusKind = "conversation"
)

// IsValid checks if the CorpusKind is a known value
func (k CorpusKind) IsValid() bool {
	switch k {
	case KindDocument, KindConversation:
		return true
	default:
		return false
	}
}

// Corpus represents one searchable corpus
type Corpus struct {
	ID          types.CorpusID
	Kind        CorpusKind
	Description string
	OwnerScoped bool
}

// Registry holds the resolved corpus topology. Built once at startup
// from the corpus configuration and injected where corpora are selected.
type Registry struct {
	corpora      []Corpus
	conversation types.CorpusID
	synonyms     map[string][]string
}

// NewRegistry creates a registry from validated configuration. The
// conversation ID must reference one of the given corpora.
func NewRegistry(corpora []Corpus, conversation types.CorpusID, synonyms map[string][]string) *Registry {
	return &Registry{
		corpora:      corpora,
		conversation: conversation,
		synonyms:     synonyms,
	}
}

// Corpora returns all corpora in declaration order
func (r *Registry) Corpora() []Corpus {
	return r.corpora
}

// IDs returns every corpus ID in declaration order
func (r *Registry) IDs() []types.CorpusID {
	ids := make([]types.CorpusID, 0, len(r.corpora))
	for _, c := range r.corpora {
		ids = append(ids, c.ID)
	}
	return ids
}

// DocumentIDs returns the IDs of the shared document corpora
func (r *Registry) DocumentIDs() []types.CorpusID {
	ids := make([]types.CorpusID, 0, len(r.corpora))
	for _, c := range r.corpora {
		if c.Kind == KindDocument {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Conversation returns the ID of the conversation memory corpus
func (r *Registry) Conversation() types.CorpusID {
	return r.conversation
}

// OwnerScopedIDs returns the corpora whose hits must never cross user
// boundaries. The conversation corpus is always owner scoped.
func (r *Registry) OwnerScopedIDs() []types.CorpusID {
	ids := make([]types.CorpusID, 0, len(r.corpora))
	for _, c := range r.corpora {
		if c.OwnerScoped || c.Kind == KindConversation {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Synonyms returns the lexical expansion table, keyed by query term
func (r *Registry) Synonyms() map[string][]string {
	return r.synonyms
}

// Lookup returns the corpus with the given ID
func (r *Registry) Lookup(id types.CorpusID) (Corpus, bool) {
	for _, c := range r.corpora {
		if c.ID == id {
			return c, true
		}
	}
	return Corpus{}, false
}
