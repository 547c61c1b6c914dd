// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deck persists processed documents, their chunks, and generated
// cards in a SQLite database so decks can be searched and re-exported
// without calling the model again.
package deck

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

const (
	dbFile            = "deck.db"
	defaultMaxResults = 50
)

// now is replaced in tests.
var now = time.Now

// Store manages the deck SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates dir/deck.db and its schema.
func Open(cfg types.DeckConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating deck directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding deck.db.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			sha256 TEXT PRIMARY KEY,
			source_path TEXT,
			pages INTEGER,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			document_sha TEXT NOT NULL REFERENCES documents(sha256) ON DELETE CASCADE,
			chunk_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			token_count INTEGER,
			section_title TEXT,
			start_page INTEGER,
			end_page INTEGER,
			PRIMARY KEY (document_sha, chunk_id)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			document_sha TEXT NOT NULL REFERENCES documents(sha256) ON DELETE CASCADE,
			model TEXT,
			note_type TEXT,
			focus TEXT,
			requested INTEGER,
			generated INTEGER,
			chunks_failed INTEGER,
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_sha TEXT NOT NULL REFERENCES documents(sha256) ON DELETE CASCADE,
			run_id TEXT NOT NULL REFERENCES runs(id),
			chunk_id TEXT,
			position INTEGER NOT NULL,
			note_type TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT,
			extra TEXT,
			tags TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_document ON cards(document_sha)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_note_type ON cards(note_type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Document identifies a source PDF.
type Document struct {
	SHA256     string `json:"sha256" yaml:"sha256"`
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`
	Pages      int    `json:"pages" yaml:"pages"`
}

// Run describes one generation pass over a document.
type Run struct {
	ID           string `json:"id" yaml:"id"`
	Document     string `json:"document" yaml:"document"`
	Model        string `json:"model" yaml:"model"`
	NoteType     string `json:"note_type" yaml:"note_type"`
	Focus        string `json:"focus" yaml:"focus"`
	Requested    int    `json:"requested" yaml:"requested"`
	Generated    int    `json:"generated" yaml:"generated"`
	ChunksFailed int    `json:"chunks_failed" yaml:"chunks_failed"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
}

// SaveChunks replaces the stored chunks of doc.
func (s *Store) SaveChunks(ctx context.Context, doc Document, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_sha = ?`, doc.SHA256); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_sha, chunk_id, seq, text, token_count, section_title, start_page, end_page)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		_, err := stmt.ExecContext(ctx,
			doc.SHA256, ch.ID, i, ch.Text, ch.TokenCount,
			ch.SectionTitle, ch.StartPage, ch.EndPage,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

// SaveRun records a generation run and replaces the document's cards with
// cards, in one transaction. It returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, doc Document, run Run, cards []types.Card) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDocument(ctx, tx, doc); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE document_sha = ?`, doc.SHA256); err != nil {
		return "", fmt.Errorf("deleting old cards: %w", err)
	}

	run.ID = uuid.NewString()
	run.Document = doc.SHA256
	run.Generated = len(cards)
	run.CreatedAt = now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, document_sha, model, note_type, focus, requested, generated, chunks_failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Document, run.Model, run.NoteType, run.Focus,
		run.Requested, run.Generated, run.ChunksFailed, run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO cards (id, document_sha, run_id, chunk_id, position, note_type, question, answer, extra, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cards {
		chunkID := ""
		if c.SourceRef != nil {
			chunkID = c.SourceRef.ChunkID
		}
		tagsJSON, _ := json.Marshal(c.Tags)
		_, err := stmt.ExecContext(ctx,
			CardID(doc.SHA256, chunkID, c), doc.SHA256, run.ID, chunkID, i,
			string(c.NoteType), c.Question, c.Answer, c.Extra, string(tagsJSON),
		)
		if err != nil {
			return "", fmt.Errorf("inserting card %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

func upsertDocument(ctx context.Context, tx *sql.Tx, doc Document) error {
	if doc.SHA256 == "" {
		return fmt.Errorf("document fingerprint is required")
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO documents (sha256, source_path, pages, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sha256) DO UPDATE SET
			source_path=COALESCE(NULLIF(excluded.source_path, ''), documents.source_path),
			pages=CASE WHEN excluded.pages > 0 THEN excluded.pages ELSE documents.pages END,
			updated_at=excluded.updated_at`,
		doc.SHA256, doc.SourcePath, doc.Pages, now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}

// CardID generates a deterministic ID from the document, chunk, and card
// content. The ID is the first 12 hex characters of a SHA-256 digest.
func CardID(document, chunkID string, c types.Card) string {
	h := sha256.New()
	for _, part := range []string{document, chunkID, string(c.NoteType), c.Question, c.Answer, c.Extra} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// DocumentSummary is a document with counts of what is stored for it.
type DocumentSummary struct {
	Document `yaml:",inline"`

	Chunks    int    `json:"chunks" yaml:"chunks"`
	Cards     int    `json:"cards" yaml:"cards"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

// Documents lists stored documents ordered by fingerprint.
func (s *Store) Documents(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.sha256, COALESCE(d.source_path, ''), COALESCE(d.pages, 0), COALESCE(d.updated_at, ''),
			(SELECT count(*) FROM chunks c WHERE c.document_sha = d.sha256),
			(SELECT count(*) FROM cards k WHERE k.document_sha = d.sha256)
		FROM documents d
		ORDER BY d.sha256`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.SHA256, &d.SourcePath, &d.Pages, &d.UpdatedAt, &d.Chunks, &d.Cards); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Runs lists the generation runs for a document, oldest first.
func (s *Store) Runs(ctx context.Context, document string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_sha, model, note_type, focus, requested, generated, chunks_failed, created_at
		FROM runs WHERE document_sha = ? ORDER BY created_at, rowid`, document)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Document, &r.Model, &r.NoteType, &r.Focus,
			&r.Requested, &r.Generated, &r.ChunksFailed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Chunks returns the stored chunks of a document in order.
func (s *Store) Chunks(ctx context.Context, document string) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, text, token_count, section_title, start_page, end_page
		FROM chunks WHERE document_sha = ? ORDER BY seq`, document)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var (
			ch         types.Chunk
			title      sql.NullString
			start, end sql.NullInt64
		)
		if err := rows.Scan(&ch.ID, &ch.Text, &ch.TokenCount, &title, &start, &end); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ch.SourceRef = types.SourceReference{PDFFingerprint: document, ChunkID: ch.ID}
		if title.Valid {
			ch.SectionTitle = &title.String
		}
		if start.Valid {
			v := int(start.Int64)
			ch.StartPage = &v
		}
		if end.Valid {
			v := int(end.Int64)
			ch.EndPage = &v
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}
