package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound        = goerr.New("configuration file not found")
	ErrInvalidConfig         = goerr.New("invalid configuration")
	ErrDuplicateCorpusID     = goerr.New("duplicate corpus ID")
	ErrInvalidCorpusID       = goerr.New("invalid corpus ID format")
	ErrInvalidCorpusKind     = goerr.New("invalid corpus kind")
	ErrNoConversationCorpus  = goerr.New("conversation corpus is not defined")
	ErrUnknownConversationID = goerr.New("conversation setting references an unknown corpus")
	ErrInvalidTuning         = goerr.New("invalid tuning parameter")
	ErrInvalidBackend        = goerr.New("invalid backend type")
)

// Context keys for error values
const (
	ConfigPathKey  = "config_path"
	CorpusIDKey    = "corpus_id"
	CorpusKindKey  = "corpus_kind"
	CorpusIndexKey = "corpus_index"
	FlagKey        = "flag"
	BackendKey     = "backend"
)
