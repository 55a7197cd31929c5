package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/pkg/errors"
)

// reassemble 拼接每段前 chunkSize-overlap 个字符，最后一段取全部
func reassemble(chunks []string, chunkSize, overlap int) string {
	var sb strings.Builder
	step := chunkSize - overlap
	for i, c := range chunks {
		r := []rune(c)
		if i == len(chunks)-1 || len(r) <= step {
			sb.WriteString(c)
			continue
		}
		sb.WriteString(string(r[:step]))
	}
	return sb.String()
}

func TestSplitText_Reassembles(t *testing.T) {
	texts := []string{
		"a",
		strings.Repeat("x", 999),
		strings.Repeat("0123456789", 100),
		strings.Repeat("lorem ipsum dolor sit amet ", 137),
		strings.Repeat("文档问答", 613),
	}
	params := []struct{ size, overlap int }{
		{1000, 200},
		{100, 0},
		{64, 63},
		{10, 3},
	}
	for _, p := range params {
		for _, text := range texts {
			chunks, err := SplitText(text, p.size, p.overlap)
			require.NoError(t, err)
			assert.Equal(t, text, reassemble(chunks, p.size, p.overlap), "size=%d overlap=%d len=%d", p.size, p.overlap, len(text))
			for _, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c)), p.size)
			}
		}
	}
}

func TestSplitText_ConsecutiveChunksOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50)
	chunks, err := SplitText(text, 100, 30)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i := 0; i < len(chunks)-2; i++ {
		assert.Equal(t, chunks[i][70:], chunks[i+1][:30])
	}
}

func TestSplitText_Deterministic(t *testing.T) {
	text := strings.Repeat("deterministic chunking ", 200)
	a, err := SplitText(text, 300, 50)
	require.NoError(t, err)
	b, err := SplitText(text, 300, 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplitText_EmptyText(t *testing.T) {
	chunks, err := SplitText("", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitText_RejectsNonAdvancingParameters(t *testing.T) {
	for _, p := range []struct{ size, overlap int }{
		{100, 150},
		{100, 100},
		{0, 0},
		{100, -1},
	} {
		_, err := SplitText("some text", p.size, p.overlap)
		assert.ErrorIs(t, err, errors.ErrConfiguration, "size=%d overlap=%d", p.size, p.overlap)
	}
}

func TestSplitText_DropsTailShorterThanOverlap(t *testing.T) {
	// 1500 字符：[0,1000) [800,1500)，下一起点 1600 已越界
	chunks, err := SplitText(strings.Repeat("a", 1500), 1000, 200)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	// 2000 字符：第三段 [1600,2000) 长 400 ≥ overlap，仍会输出
	chunks, err = SplitText(strings.Repeat("a", 2000), 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 400)

	// 恰好 chunkSize 字符：剩余 200 不小于 overlap，仍输出完全落在首段内的 [800,1000)
	text := strings.Repeat("a", 800) + strings.Repeat("b", 200)
	chunks, err = SplitText(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, text, chunks[0])
	assert.Equal(t, strings.Repeat("b", 200), chunks[1])
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks, err := SplitText("short", 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)
}
