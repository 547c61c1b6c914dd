// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.DeckConfig{Dir: filepath.Join(t.TempDir(), "deck"), MaxResults: 20})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func card(q, a string, nt types.NoteType, chunkID string, tags ...string) types.Card {
	c := types.Card{Question: q, NoteType: nt, Tags: tags}
	if nt == types.NoteCloze {
		c.Extra = a
	} else {
		c.Answer = a
	}
	c.SourceRef = &types.SourceReference{PDFFingerprint: "ignored", ChunkID: chunkID}
	return c
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.SaveRun(ctx, Document{SHA256: "docA", SourcePath: "/pdfs/a.pdf", Pages: 3},
		Run{Model: "m", NoteType: "basic", Requested: 3},
		[]types.Card{
			card("What is a cell?", "The basic unit of life.", types.NoteBasic, "chunk_0001", "PDF2Anki", "auto-generated"),
			card("What grows by 100%?", "Nothing.", types.NoteBasic, "chunk_0001", "PDF2Anki", "auto-generated"),
			card("Name an organelle.", "Mitochondria", types.NoteBasic, "chunk_0002", "PDF2Anki", "auto-generated"),
		})
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, Document{SHA256: "docB"},
		Run{Model: "m", NoteType: "cloze", Requested: 1},
		[]types.Card{
			card("{{c1::DNA}} stores information in a CELL.", "Biology", types.NoteCloze, "chunk_0001", "PDF2Anki", "auto-generated", "cloze"),
		})
	require.NoError(t, err)
}

func questions(cards []StoredCard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Question
	}
	return out
}

// --- store ---

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deck")
	s, err := Open(types.DeckConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, filepath.Join(dir, "deck.db"))
	assert.Equal(t, defaultMaxResults, s.maxResults)
	assert.Equal(t, dir, s.Dir())
}

func TestSaveRun_StoresCardsInOrder(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	cards, err := s.Cards(context.Background(), QueryOptions{Document: "docA"})
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, []string{"What is a cell?", "What grows by 100%?", "Name an organelle."}, questions(cards))
	for i, c := range cards {
		assert.Equal(t, i, c.Position)
		assert.Len(t, c.ID, 12)
		assert.NotEmpty(t, c.RunID)
		assert.Equal(t, "docA", c.SourceRef.PDFFingerprint)
		assert.Equal(t, []string{"PDF2Anki", "auto-generated"}, c.Tags)
	}
	assert.Equal(t, "chunk_0002", cards[2].SourceRef.ChunkID)
}

func TestSaveRun_ReplacesPreviousCards(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	old := now
	now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = old }()

	runID, err := s.SaveRun(ctx, Document{SHA256: "docA"},
		Run{Model: "m2", NoteType: "basic", Requested: 1, ChunksFailed: 1},
		[]types.Card{card("Replacement?", "Yes", types.NoteBasic, "chunk_0003")})
	require.NoError(t, err)

	cards, err := s.Cards(ctx, QueryOptions{Document: "docA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Replacement?"}, questions(cards))
	assert.Equal(t, runID, cards[0].RunID)

	runs, err := s.Runs(ctx, "docA")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	last := runs[1]
	assert.Equal(t, runID, last.ID)
	assert.Equal(t, "m2", last.Model)
	assert.Equal(t, 1, last.Generated)
	assert.Equal(t, 1, last.ChunksFailed)
	assert.Equal(t, "2030-01-01T00:00:00Z", last.CreatedAt)

	// The other document is untouched.
	other, err := s.Cards(ctx, QueryOptions{Document: "docB"})
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSaveRun_RequiresFingerprint(t *testing.T) {
	s := testStore(t)
	_, err := s.SaveRun(context.Background(), Document{}, Run{}, nil)
	assert.ErrorContains(t, err, "fingerprint")
}

func TestSaveRun_DuplicateCardsCollapse(t *testing.T) {
	s := testStore(t)
	dup := card("Same?", "Same.", types.NoteBasic, "chunk_0001")

	_, err := s.SaveRun(context.Background(), Document{SHA256: "d"}, Run{}, []types.Card{dup, dup})
	require.NoError(t, err)

	cards, err := s.Cards(context.Background(), QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestCardID(t *testing.T) {
	c := card("Q", "A", types.NoteBasic, "chunk_0001")
	id := CardID("doc", "chunk_0001", c)

	assert.Len(t, id, 12)
	assert.Equal(t, id, CardID("doc", "chunk_0001", c))
	assert.NotEqual(t, id, CardID("doc2", "chunk_0001", c))
	assert.NotEqual(t, id, CardID("doc", "chunk_0002", c))
}

func TestSaveChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	page, end, title := 2, 3, "Intro"
	in := []types.Chunk{
		{ID: "chunk_0001", Text: "first", TokenCount: 1, StartPage: &page, EndPage: &end, SectionTitle: &title},
		{ID: "chunk_0002", Text: "second", TokenCount: 2},
	}
	require.NoError(t, s.SaveChunks(ctx, Document{SHA256: "doc", Pages: 3}, in))

	got, err := s.Chunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, 2, *got[0].StartPage)
	assert.Equal(t, 3, *got[0].EndPage)
	assert.Equal(t, "Intro", got[0].Title())
	assert.Equal(t, types.SourceReference{PDFFingerprint: "doc", ChunkID: "chunk_0002"}, got[1].SourceRef)
	assert.Nil(t, got[1].StartPage)
	assert.Nil(t, got[1].SectionTitle)

	// Saving again replaces.
	require.NoError(t, s.SaveChunks(ctx, Document{SHA256: "doc"}, in[:1]))
	got, err = s.Chunks(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDocuments(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.SaveChunks(ctx, Document{SHA256: "docA"}, []types.Chunk{{ID: "chunk_0001", Text: "x"}}))

	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "docA", docs[0].SHA256)
	// Upserts without a path or page count keep the stored values.
	assert.Equal(t, "/pdfs/a.pdf", docs[0].SourcePath)
	assert.Equal(t, 3, docs[0].Pages)
	assert.Equal(t, 1, docs[0].Chunks)
	assert.Equal(t, 3, docs[0].Cards)
	assert.Equal(t, "docB", docs[1].SHA256)
	assert.Equal(t, 1, docs[1].Cards)
}

// --- retrieve ---

func TestCards_Filters(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{
			name: "all",
			opts: QueryOptions{},
			want: []string{"What is a cell?", "What grows by 100%?", "Name an organelle.", "{{c1::DNA}} stores information in a CELL."},
		},
		{
			name: "substring is case-insensitive",
			opts: QueryOptions{Query: "cell"},
			want: []string{"What is a cell?", "{{c1::DNA}} stores information in a CELL."},
		},
		{
			name: "matches answer and extra",
			opts: QueryOptions{Query: "mitochondria"},
			want: []string{"Name an organelle."},
		},
		{
			name: "wildcards are literal",
			opts: QueryOptions{Query: "100%"},
			want: []string{"What grows by 100%?"},
		},
		{
			name: "underscore is literal",
			opts: QueryOptions{Query: "_"},
			want: []string{},
		},
		{
			name: "note type",
			opts: QueryOptions{NoteType: types.NoteCloze},
			want: []string{"{{c1::DNA}} stores information in a CELL."},
		},
		{
			name: "tag",
			opts: QueryOptions{Tag: "cloze"},
			want: []string{"{{c1::DNA}} stores information in a CELL."},
		},
		{
			name: "document and query",
			opts: QueryOptions{Document: "docB", Query: "what"},
			want: []string{},
		},
		{
			name: "max results",
			opts: QueryOptions{MaxResults: 2},
			want: []string{"What is a cell?", "What grows by 100%?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := s.Cards(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, questions(cards))
		})
	}
}

// --- export ---

func TestExportTSV(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.ExportTSV(context.Background(), &buf, QueryOptions{Document: "docB"}, false))
	assert.Equal(t, "{{c1::DNA}} stores information in a CELL.\tBiology\tPDF2Anki;auto-generated;cloze\n", buf.String())
}

func TestExportJSON(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), &buf, QueryOptions{Document: "docA"}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "What is a cell?", got[0]["question"])
	assert.Equal(t, "basic", got[0]["note_type"])
	assert.Contains(t, got[0], "run_id")
}

func TestExportYAML(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(context.Background(), &buf, QueryOptions{NoteType: types.NoteCloze}))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Biology", got[0]["extra"])
	assert.Equal(t, "cloze", got[0]["note_type"])
}

func TestExportFile(t *testing.T) {
	s := testStore(t)
	seed(t, s)

	path, err := s.ExportFile(context.Background(), FormatTSV, QueryOptions{}, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "export.tsv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestParseFormat(t *testing.T) {
	for _, f := range []string{"tsv", "json", "yaml"} {
		got, err := ParseFormat(f)
		require.NoError(t, err)
		assert.Equal(t, Format(f), got)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}
