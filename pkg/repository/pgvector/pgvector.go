package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

var (
	driverOnce sync.Once
	driverName string
	driverErr  error
)

// registerDriver wraps lib/pq with otelsql instrumentation. Registration
// is process-global, so it runs once no matter how many indexes open.
func registerDriver() (string, error) {
	driverOnce.Do(func() {
		driverName, driverErr = otelsql.Register("postgres",
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		)
	})
	return driverName, driverErr
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	corpus    TEXT NOT NULL,
	doc_id    TEXT NOT NULL,
	owner_id  TEXT NOT NULL DEFAULT '',
	content   TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (corpus, doc_id)
)`

// Index is a SemanticIndex on PostgreSQL with the pgvector extension.
// All corpora share one table keyed by (corpus, doc_id).
type Index struct {
	conn *sql.DB
}

var _ interfaces.SemanticIndex = &Index{}

func New(ctx context.Context, dsn string) (*Index, error) {
	driver, err := registerDriver()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to register instrumented postgres driver")
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres connection")
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	if err := otelsql.RecordStats(conn); err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to record postgres stats")
	}

	if _, err := conn.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to enable pgvector extension")
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(schema, model.EmbeddingDimension)); err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to create documents table")
	}
	if _, err := conn.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS documents_embedding_idx ON documents USING hnsw (embedding vector_cosine_ops)",
	); err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to create vector index")
	}

	return &Index{conn: conn}, nil
}

func (x *Index) Close() error {
	return x.conn.Close()
}

func (x *Index) Upsert(ctx context.Context, corpus types.CorpusID, doc *interfaces.Doc) error {
	query := `
		INSERT INTO documents (corpus, doc_id, owner_id, content, embedding, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (corpus, doc_id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
		    content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    ts = EXCLUDED.ts
	`

	if _, err := x.conn.ExecContext(ctx, query,
		string(corpus),
		doc.ID,
		string(doc.Owner),
		doc.Content,
		pgvector.NewVector(doc.Embedding),
		doc.Timestamp.UTC(),
	); err != nil {
		return goerr.Wrap(err, "failed to upsert document",
			goerr.V("corpus", corpus), goerr.V("docID", doc.ID))
	}

	return nil
}

func (x *Index) Search(ctx context.Context, query *interfaces.SemanticQuery) ([]*interfaces.Hit, error) {
	stmt := `
		SELECT doc_id, owner_id, content, ts, 1 - (embedding <=> $2) AS score
		FROM documents
		WHERE corpus = $1
	`
	args := []any{string(query.Corpus), pgvector.NewVector(query.Embedding)}
	if query.Owner != "" {
		stmt += " AND owner_id = $3"
		args = append(args, string(query.Owner))
	}
	stmt += fmt.Sprintf(" ORDER BY embedding <=> $2 LIMIT %d", query.TopK)

	rows, err := x.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run vector search", goerr.V("corpus", query.Corpus))
	}
	defer rows.Close()

	hits := make([]*interfaces.Hit, 0, query.TopK)
	for rows.Next() {
		var (
			docID   string
			ownerID string
			content string
			ts      time.Time
			score   float64
		)
		if err := rows.Scan(&docID, &ownerID, &content, &ts, &score); err != nil {
			return nil, goerr.Wrap(err, "failed to scan search row", goerr.V("corpus", query.Corpus))
		}
		hits = append(hits, &interfaces.Hit{
			DocID:     docID,
			Score:     score,
			Snippet:   content,
			Owner:     types.UserID(ownerID),
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate search rows", goerr.V("corpus", query.Corpus))
	}

	return hits, nil
}

func (x *Index) Delete(ctx context.Context, corpus types.CorpusID, docID string) error {
	if _, err := x.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE corpus = $1 AND doc_id = $2",
		string(corpus), docID,
	); err != nil {
		return goerr.Wrap(err, "failed to delete document",
			goerr.V("corpus", corpus), goerr.V("docID", docID))
	}
	return nil
}

func (x *Index) DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error {
	if _, err := x.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE corpus = $1 AND owner_id = $2",
		string(corpus), string(owner),
	); err != nil {
		return goerr.Wrap(err, "failed to delete documents",
			goerr.V("corpus", corpus), goerr.V("owner", owner))
	}
	return nil
}
