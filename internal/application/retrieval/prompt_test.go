package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposePrompt_NoSegmentsReturnsBareQuery(t *testing.T) {
	assert.Equal(t, "What is RAG?", ComposePrompt("What is RAG?", nil))
}

func TestComposePrompt_NumbersSegmentsInRetrievalOrder(t *testing.T) {
	segs := []RetrievedSegment{
		{Text: "most similar", Score: 0.9},
		{Text: "less similar", Score: 0.4},
	}
	got := ComposePrompt("q?", segs)

	assert.True(t, strings.HasPrefix(got, "Context information is below:\n"))
	assert.Contains(t, got, "\n---\nDocument 1:\nmost similar\n")
	assert.Contains(t, got, "\n---\nDocument 2:\nless similar\n")
	assert.Less(t, strings.Index(got, "most similar"), strings.Index(got, "less similar"))
	assert.Contains(t, got, "Question: q?")
	assert.True(t, strings.HasSuffix(got, "Answer based on the context provided. Include relevant citations."))
}
