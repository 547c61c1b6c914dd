// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// QueryOptions holds parameters for card queries.
type QueryOptions struct {
	// Query is a case-insensitive substring matched against question,
	// answer, and extra.
	Query string

	NoteType types.NoteType

	// Tag keeps cards carrying this tag.
	Tag string

	// Document filters by source PDF fingerprint.
	Document string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// StoredCard is a card with its storage identity.
type StoredCard struct {
	types.Card `yaml:",inline"`

	ID       string `json:"id" yaml:"id"`
	RunID    string `json:"run_id" yaml:"run_id"`
	Position int    `json:"position" yaml:"position"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Cards returns stored cards matching opts, ordered by document and
// generation position.
func (s *Store) Cards(ctx context.Context, opts QueryOptions) ([]StoredCard, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT c.id, c.run_id, c.position, c.document_sha, c.chunk_id,
			c.note_type, c.question, c.answer, c.extra, c.tags
		FROM cards c
		WHERE 1=1`)

	if opts.Query != "" {
		pattern := "%" + likeEscaper.Replace(opts.Query) + "%"
		qb.WriteString(` AND (c.question LIKE ? ESCAPE '\' OR c.answer LIKE ? ESCAPE '\' OR c.extra LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if opts.NoteType != "" {
		qb.WriteString(` AND c.note_type = ?`)
		args = append(args, string(opts.NoteType))
	}

	if opts.Document != "" {
		qb.WriteString(` AND c.document_sha = ?`)
		args = append(args, opts.Document)
	}

	if opts.Tag != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(c.tags) WHERE value = ?)`)
		args = append(args, opts.Tag)
	}

	qb.WriteString(` ORDER BY c.document_sha, c.position LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying cards: %w", err)
	}
	defer rows.Close()

	results := []StoredCard{}
	for rows.Next() {
		var (
			sc                 StoredCard
			document, noteType string
			chunkID, answer    sql.NullString
			extra, tagsJSON    sql.NullString
		)
		if err := rows.Scan(
			&sc.ID, &sc.RunID, &sc.Position, &document, &chunkID,
			&noteType, &sc.Question, &answer, &extra, &tagsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		sc.NoteType = types.NoteType(noteType)
		sc.Answer = answer.String
		sc.Extra = extra.String
		if tagsJSON.Valid {
			json.Unmarshal([]byte(tagsJSON.String), &sc.Tags)
		}
		sc.SourceRef = &types.SourceReference{PDFFingerprint: document, ChunkID: chunkID.String}

		results = append(results, sc)
	}
	return results, rows.Err()
}
