package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/chromem"
	"github.com/secmon-lab/mnemosyne/pkg/repository/pgvector"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Semantic holds CLI flags for the semantic index backend
type Semantic struct {
	backend     string
	chromemPath string
	pgDSN       string

	pg *pgvector.Index
}

// Flags returns CLI flags for semantic index configuration
func (s *Semantic) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "semantic-backend",
			Usage:       "Semantic index backend (firestore, chromem or pgvector)",
			Value:       "chromem",
			Sources:     cli.EnvVars("MNEMOSYNE_SEMANTIC_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Usage:       "Directory for persistent chromem storage (empty keeps vectors in memory)",
			Sources:     cli.EnvVars("MNEMOSYNE_CHROMEM_PATH"),
			Destination: &s.chromemPath,
		},
		&cli.StringFlag{
			Name:        "pgvector-dsn",
			Usage:       "PostgreSQL DSN (required when using pgvector backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_PGVECTOR_DSN"),
			Destination: &s.pgDSN,
		},
	}
}

// Configure initializes and returns the semantic index based on the
// configured backend. The firestore backend reuses the repository's
// connection.
func (s *Semantic) Configure(ctx context.Context, repo *Repository) (interfaces.SemanticIndex, error) {
	switch s.backend {
	case "firestore":
		fs, err := repo.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using Firestore semantic index")
		return fs.Documents(), nil

	case "chromem":
		index, err := chromem.New(chromem.WithPath(s.chromemPath))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize chromem index")
		}
		logging.Default().Info("Using embedded chromem semantic index", "path", s.chromemPath)
		return index, nil

	case "pgvector":
		if s.pgDSN == "" {
			return nil, goerr.New("pgvector-dsn is required when using pgvector backend",
				goerr.V(FlagKey, "pgvector-dsn"))
		}
		index, err := pgvector.New(ctx, s.pgDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize pgvector index")
		}
		s.pg = index
		logging.Default().Info("Using pgvector semantic index")
		return index, nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "semantic-backend must be firestore, chromem or pgvector",
			goerr.V(BackendKey, s.backend))
	}
}

// Close releases the semantic backend if it holds a connection
func (s *Semantic) Close() error {
	if s.pg != nil {
		return s.pg.Close()
	}
	return nil
}
