// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package semantic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2anki/pkg/types"
)

func TestDefinitions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []types.Definition
	}{
		{
			name: "is with article",
			text: "**Photosynthesis** is the process by which plants make food. More text.",
			want: []types.Definition{{Term: "Photosynthesis", Definition: "process by which plants make food"}},
		},
		{
			name: "is an stops at comma",
			text: "Here **Mitochondria** is an organelle, found in cells",
			want: []types.Definition{{Term: "Mitochondria", Definition: "organelle"}},
		},
		{
			name: "is without article runs to line end",
			text: "**Entropy** IS disorder in a system\nnext line",
			want: []types.Definition{{Term: "Entropy", Definition: "disorder in a system"}},
		},
		{
			name: "colon at line start",
			text: "intro\n  **Gradient**: direction of steepest ascent; see below",
			want: []types.Definition{{Term: "Gradient", Definition: "direction of steepest ascent"}},
		},
		{
			name: "dash at line start",
			text: "**Vector** - a quantity with direction",
			want: []types.Definition{{Term: "Vector", Definition: "a quantity with direction"}},
		},
		{
			name: "families are not deduplicated",
			text: "**Atom** is a particle.\n**Atom**: a particle.",
			want: []types.Definition{
				{Term: "Atom", Definition: "particle"},
				{Term: "Atom", Definition: "a particle"},
			},
		},
		{
			name: "colon form must start the line",
			text: "see **Term**: not a definition",
			want: []types.Definition{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Definitions(tt.text))
		})
	}
}

func TestKeyTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "strong weak and quoted",
			text: `The **Krebs cycle** and *glycolysis* are "energy pathways".`,
			want: []string{"Krebs cycle", "glycolysis", "energy pathways"},
		},
		{
			name: "case-insensitive dedup keeps first casing",
			text: "**Krebs cycle** then **krebs CYCLE** then *KREBS cycle*",
			want: []string{"Krebs cycle"},
		},
		{
			name: "length bounds",
			text: "**ab** *abc* **" + strings.Repeat("x", 50) + "** *" + strings.Repeat("y", 49) + "*",
			want: []string{"abc", strings.Repeat("y", 49)},
		},
		{
			name: "math spans are ignored",
			text: "Given $a*b*c$ and $x^*y^*$ only *real* counts",
			want: []string{"real"},
		},
		{
			name: "short quotes are ignored",
			text: `Say "ok" now`,
			want: []string{},
		},
		{
			name: "nothing found",
			text: "plain text",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyTerms(tt.text))
		})
	}
}

func TestBoundaries(t *testing.T) {
	text := "# Title\n- bullet\n* star\n+ plus\n1. one\n2) two\nplain\n  - indented\n-nospace"

	got := Boundaries(text)

	want := []types.ConceptBoundary{
		{Type: types.BoundaryHeading, Text: "# Title", Line: 0},
		{Type: types.BoundaryBulletList, Text: "- bullet", Line: 1},
		{Type: types.BoundaryBulletList, Text: "* star", Line: 2},
		{Type: types.BoundaryBulletList, Text: "+ plus", Line: 3},
		{Type: types.BoundaryNumberedList, Text: "1. one", Line: 4},
		{Type: types.BoundaryNumberedList, Text: "2) two", Line: 5},
		{Type: types.BoundaryBulletList, Text: "- indented", Line: 7},
	}
	assert.Equal(t, want, got)
}

func TestBoundaries_Truncates(t *testing.T) {
	got := Boundaries("- " + strings.Repeat("x", 150))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Text, 100)
}

func TestAnnotateChunk(t *testing.T) {
	ch := types.Chunk{ID: "chunk_0001", Text: "## Cells\n**Cell**: basic unit of life.\n- *membrane* protects"}

	first := AnnotateChunk(ch)
	second := AnnotateChunk(ch)

	assert.Equal(t, first, second)
	assert.Equal(t, []types.Definition{{Term: "Cell", Definition: "basic unit of life"}}, first.Definitions)
	assert.Equal(t, []string{"Cell", "membrane"}, first.KeyTerms)
	assert.Len(t, first.ConceptBoundaries, 2)
}
