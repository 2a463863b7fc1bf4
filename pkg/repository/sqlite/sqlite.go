package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	_ "modernc.org/sqlite"
)

// Index is a LexicalIndex on SQLite FTS5. An external-content FTS table
// shadows the docs table and is kept in sync by triggers, so the plain
// table stays the source of truth for doc metadata.
type Index struct {
	db *sql.DB
}

var _ interfaces.LexicalIndex = &Index{}

const schema = `
CREATE TABLE IF NOT EXISTS docs (
	corpus   TEXT NOT NULL,
	doc_id   TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL,
	ts       TEXT NOT NULL,
	PRIMARY KEY (corpus, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_docs_owner ON docs(corpus, owner_id);

CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
	content,
	content=docs,
	content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS docs_ai AFTER INSERT ON docs BEGIN
	INSERT INTO docs_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS docs_ad AFTER DELETE ON docs BEGIN
	INSERT INTO docs_fts(docs_fts, rowid, content) VALUES('delete', old.rowid, old.content);
END;
CREATE TRIGGER IF NOT EXISTS docs_au AFTER UPDATE ON docs BEGIN
	INSERT INTO docs_fts(docs_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	INSERT INTO docs_fts(rowid, content) VALUES (new.rowid, new.content);
END;
`

// New opens or creates the index database. Pass ":memory:" for an
// ephemeral index.
func New(path string) (*Index, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(10000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	// each pooled connection to :memory: would get its own empty database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to migrate sqlite schema", goerr.V("path", path))
	}

	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) Upsert(ctx context.Context, corpus types.CorpusID, doc *interfaces.Doc) error {
	query := `
		INSERT INTO docs (corpus, doc_id, owner_id, content, ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (corpus, doc_id) DO UPDATE
		SET owner_id = excluded.owner_id, content = excluded.content, ts = excluded.ts
	`

	if _, err := x.db.ExecContext(ctx, query,
		string(corpus),
		doc.ID,
		string(doc.Owner),
		doc.Content,
		doc.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return goerr.Wrap(err, "failed to upsert document",
			goerr.V("corpus", corpus), goerr.V("docID", doc.ID))
	}

	return nil
}

func (x *Index) Search(ctx context.Context, corpus types.CorpusID, text string, k int) ([]*interfaces.Hit, error) {
	match := matchExpr(text)
	if match == "" || k <= 0 {
		return []*interfaces.Hit{}, nil
	}

	query := `
		SELECT d.doc_id, d.owner_id, d.content, d.ts, bm25(docs_fts) AS rank
		FROM docs_fts
		JOIN docs d ON d.rowid = docs_fts.rowid
		WHERE docs_fts MATCH ? AND d.corpus = ?
		ORDER BY rank
		LIMIT ?
	`

	rows, err := x.db.QueryContext(ctx, query, match, string(corpus), k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run lexical search", goerr.V("corpus", corpus))
	}
	defer rows.Close()

	hits := make([]*interfaces.Hit, 0, k)
	for rows.Next() {
		var (
			docID   string
			ownerID string
			content string
			ts      string
			rank    float64
		)
		if err := rows.Scan(&docID, &ownerID, &content, &ts, &rank); err != nil {
			return nil, goerr.Wrap(err, "failed to scan search row", goerr.V("corpus", corpus))
		}

		// bm25() reports better matches as more negative values
		hit := &interfaces.Hit{
			DocID:   docID,
			Score:   -rank,
			Snippet: content,
			Owner:   types.UserID(ownerID),
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			hit.Timestamp = parsed
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate search rows", goerr.V("corpus", corpus))
	}

	return hits, nil
}

func (x *Index) Delete(ctx context.Context, corpus types.CorpusID, docID string) error {
	if _, err := x.db.ExecContext(ctx,
		"DELETE FROM docs WHERE corpus = ? AND doc_id = ?",
		string(corpus), docID,
	); err != nil {
		return goerr.Wrap(err, "failed to delete document",
			goerr.V("corpus", corpus), goerr.V("docID", docID))
	}
	return nil
}

func (x *Index) DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error {
	if _, err := x.db.ExecContext(ctx,
		"DELETE FROM docs WHERE corpus = ? AND owner_id = ?",
		string(corpus), string(owner),
	); err != nil {
		return goerr.Wrap(err, "failed to delete documents",
			goerr.V("corpus", corpus), goerr.V("owner", owner))
	}
	return nil
}

// matchExpr converts free text into an FTS5 query. Terms are quoted so
// user input cannot inject FTS5 syntax, and joined with OR because recall
// matters more than precision before fusion reranks.
func matchExpr(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
