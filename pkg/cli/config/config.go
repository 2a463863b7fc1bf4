package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// CorpusFile represents the corpus configuration file
type CorpusFile struct {
	Conversation string              `toml:"conversation"`
	Corpora      []CorpusEntry       `toml:"corpus"`
	Synonyms     map[string][]string `toml:"synonyms"`
}

// CorpusEntry represents one corpus declaration
type CorpusEntry struct {
	ID          string `toml:"id"`
	Kind        string `toml:"kind"`
	Description string `toml:"description"`
	OwnerScoped bool   `toml:"owner_scoped"`
}

// Validate checks if the CorpusEntry is valid
func (c *CorpusEntry) Validate() error {
	id := types.CorpusID(c.ID)
	if err := id.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidCorpusID, err.Error(), goerr.V(CorpusIDKey, c.ID))
	}
	kind := domainConfig.CorpusKind(c.Kind)
	if !kind.IsValid() {
		return goerr.Wrap(ErrInvalidCorpusKind, "kind must be document or conversation",
			goerr.V(CorpusIDKey, c.ID), goerr.V(CorpusKindKey, c.Kind))
	}
	return nil
}

// Validate checks if the CorpusFile is valid
func (f *CorpusFile) Validate() error {
	if len(f.Corpora) == 0 {
		return goerr.Wrap(ErrInvalidConfig, "at least one corpus is required")
	}

	corpusIDs := make(map[string]bool)
	for i, c := range f.Corpora {
		if err := c.Validate(); err != nil {
			return goerr.Wrap(err, "invalid corpus", goerr.V(CorpusIndexKey, i))
		}
		if corpusIDs[c.ID] {
			return goerr.Wrap(ErrDuplicateCorpusID, "corpus IDs must be unique", goerr.V(CorpusIDKey, c.ID))
		}
		corpusIDs[c.ID] = true
	}

	if f.Conversation == "" {
		return goerr.Wrap(ErrNoConversationCorpus, "set conversation to one of the corpus IDs")
	}
	if !corpusIDs[f.Conversation] {
		return goerr.Wrap(ErrUnknownConversationID, "conversation must match a declared corpus",
			goerr.V(CorpusIDKey, f.Conversation))
	}
	for _, c := range f.Corpora {
		if c.ID == f.Conversation && c.Kind != string(domainConfig.KindConversation) {
			return goerr.Wrap(ErrInvalidCorpusKind, "the conversation corpus must have kind conversation",
				goerr.V(CorpusIDKey, c.ID), goerr.V(CorpusKindKey, c.Kind))
		}
	}

	return nil
}

// ToRegistry converts the validated file into the domain corpus registry
func (f *CorpusFile) ToRegistry() *domainConfig.Registry {
	corpora := make([]domainConfig.Corpus, len(f.Corpora))
	for i, c := range f.Corpora {
		corpora[i] = domainConfig.Corpus{
			ID:          types.CorpusID(c.ID),
			Kind:        domainConfig.CorpusKind(c.Kind),
			Description: c.Description,
			OwnerScoped: c.OwnerScoped,
		}
	}
	return domainConfig.NewRegistry(corpora, types.CorpusID(f.Conversation), f.Synonyms)
}

// LoadCorpusFile loads and validates a corpus configuration from a TOML file
func LoadCorpusFile(path string) (*CorpusFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "corpus config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read corpus config file", goerr.V(ConfigPathKey, path))
	}

	var file CorpusFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML corpus config", goerr.V(ConfigPathKey, path))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "corpus config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

// Corpora holds CLI flags for corpus topology configuration
type Corpora struct {
	path string
}

// Flags returns CLI flags for corpus configuration
func (x *Corpora) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "corpus-config",
			Usage:       "Path to corpus configuration TOML file (omit for the built-in documents/conversations setup)",
			Sources:     cli.EnvVars("MNEMOSYNE_CORPUS_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Path returns the configured corpus config file path
func (x *Corpora) Path() string {
	return x.path
}

// Configure loads the corpus registry. Without a configured file it
// returns the default two-corpus setup: a shared "documents" corpus and
// an owner-scoped "conversations" memory corpus.
func (x *Corpora) Configure() (*domainConfig.Registry, error) {
	if x.path == "" {
		return defaultRegistry(), nil
	}

	file, err := LoadCorpusFile(x.path)
	if err != nil {
		return nil, err
	}
	return file.ToRegistry(), nil
}

func defaultRegistry() *domainConfig.Registry {
	return domainConfig.NewRegistry(
		[]domainConfig.Corpus{
			{ID: "documents", Kind: domainConfig.KindDocument, Description: "Shared document corpus"},
			{ID: "conversations", Kind: domainConfig.KindConversation, Description: "Per-user conversation memory", OwnerScoped: true},
		},
		"conversations",
		nil,
	)
}
