package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/sqlite"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Lexical holds CLI flags for the lexical index backend
type Lexical struct {
	backend    string
	sqlitePath string

	index *sqlite.Index
}

// Flags returns CLI flags for lexical index configuration
func (l *Lexical) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "lexical-backend",
			Usage:       "Lexical index backend (sqlite or none)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("MNEMOSYNE_LEXICAL_BACKEND"),
			Destination: &l.backend,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "Path to the SQLite index database (:memory: for ephemeral)",
			Value:       "mnemosyne.db",
			Sources:     cli.EnvVars("MNEMOSYNE_SQLITE_PATH"),
			Destination: &l.sqlitePath,
		},
	}
}

// Configure initializes and returns the lexical index. The none backend
// returns nil, which runs retrieval semantic-only.
func (l *Lexical) Configure() (interfaces.LexicalIndex, error) {
	switch l.backend {
	case "sqlite":
		index, err := sqlite.New(l.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite index")
		}
		l.index = index
		logging.Default().Info("Using SQLite FTS lexical index", "path", l.sqlitePath)
		return index, nil

	case "none":
		logging.Default().Info("Lexical index disabled, retrieval runs semantic-only")
		return nil, nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "lexical-backend must be sqlite or none",
			goerr.V(BackendKey, l.backend))
	}
}

// Close releases the lexical backend
func (l *Lexical) Close() error {
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}
