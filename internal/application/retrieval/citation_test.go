package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttribute_PageEstimate(t *testing.T) {
	tests := []struct {
		chunkIndex int
		want       int
	}{
		{0, 1},
		{2, 1},
		{3, 2},
		{7, 3},
		{9, 4},
	}
	for _, tt := range tests {
		got := Attribute(RetrievedSegment{Text: "x", Meta: SegmentMeta{ChunkIndex: tt.chunkIndex}})
		assert.Equal(t, tt.want, got.Page, "chunk_index=%d", tt.chunkIndex)
	}
}

func TestAttribute_MissingChunkIndexDefaultsToFirstPage(t *testing.T) {
	got := Attribute(RetrievedSegment{Text: "no metadata"})
	assert.Equal(t, 1, got.Page)
}

func TestAttribute_ExcerptTruncation(t *testing.T) {
	long := Attribute(RetrievedSegment{Text: strings.Repeat("a", 250)})
	assert.Equal(t, strings.Repeat("a", 200)+"...", long.Content)

	short := Attribute(RetrievedSegment{Text: strings.Repeat("b", 150)})
	assert.Equal(t, strings.Repeat("b", 150), short.Content)

	exact := Attribute(RetrievedSegment{Text: strings.Repeat("c", 200)})
	assert.Equal(t, strings.Repeat("c", 200), exact.Content)
}

func TestAttribute_ExcerptCountsCharactersNotBytes(t *testing.T) {
	got := Attribute(RetrievedSegment{Text: strings.Repeat("页", 201)})
	assert.Equal(t, strings.Repeat("页", 200)+"...", got.Content)
}

func TestAttributeAll_PreservesOrder(t *testing.T) {
	segs := []RetrievedSegment{
		{Text: "first", Meta: SegmentMeta{ChunkIndex: 6}},
		{Text: "second", Meta: SegmentMeta{ChunkIndex: 0}},
	}
	got := AttributeAll(segs)
	assert.Equal(t, []Citation{{Page: 3, Content: "first"}, {Page: 1, Content: "second"}}, got)
}
