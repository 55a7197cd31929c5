package retrieval

import (
	"fmt"

	"doc-qa-api/pkg/errors"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitText 按字符（rune）切分文本，相邻片段重叠 overlap 个字符。
// 每步取 text[offset:offset+chunkSize]，offset 前进 chunkSize-overlap；
// 剩余未消费尾部短于 overlap 时停止（该尾部已被上一片段的重叠部分覆盖）。
// 尾部恰好等于 overlap 时仍输出该尾部，因此长度正好为 chunkSize 的文本得到两段，第二段是第一段的后缀。
// 片段不做 TrimSpace：拼接各片段前 chunkSize-overlap 个字符（最后一段取全部）可还原原文。
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 || overlap < 0 || chunkSize <= overlap {
		return nil, errors.ErrConfiguration.WithDetail(
			fmt.Sprintf("chunk_size must be greater than overlap >= 0, got chunk_size=%d overlap=%d", chunkSize, overlap))
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := chunkSize - overlap

	out := make([]string, 0, n/step+1)
	for start := 0; start < n; {
		end := start + chunkSize
		if end > n {
			end = n
		}
		out = append(out, string(runes[start:end]))
		start += step
		if n-start < overlap {
			break
		}
	}
	return out, nil
}
