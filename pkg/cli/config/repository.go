package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the durable memory tier. It also owns
// the shared Firestore connection so the semantic index can reuse it
// when both tiers run on Firestore.
type Repository struct {
	backend    string
	projectID  string
	databaseID string

	fs *firestore.Firestore
}

// Flags returns CLI flags for durable store configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "durable-backend",
			Usage:       "Durable memory backend (firestore or memory)",
			Value:       "memory",
			Sources:     cli.EnvVars("MNEMOSYNE_DURABLE_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required for firestore backends)",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// Firestore returns the shared Firestore connection, opening it on
// first use
func (r *Repository) Firestore(ctx context.Context) (*firestore.Firestore, error) {
	if r.fs != nil {
		return r.fs, nil
	}
	if r.projectID == "" {
		return nil, goerr.New("firestore-project-id is required when using a firestore backend",
			goerr.V(FlagKey, "firestore-project-id"))
	}

	fs, err := firestore.New(ctx, r.projectID, r.databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize firestore")
	}
	r.fs = fs
	return fs, nil
}

// Configure initializes and returns the durable store based on the
// configured backend
func (r *Repository) Configure(ctx context.Context) (interfaces.DurableStore, error) {
	switch r.backend {
	case "firestore":
		fs, err := r.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using Firestore durable store",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return fs.Records(), nil

	case "memory":
		logging.Default().Info("Using in-memory durable store (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "durable-backend must be firestore or memory",
			goerr.V(BackendKey, r.backend))
	}
}

// Close releases the Firestore connection if one was opened
func (r *Repository) Close() error {
	if r.fs == nil {
		return nil
	}
	return r.fs.Close()
}
