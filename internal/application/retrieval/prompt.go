package retrieval

import (
	"fmt"
	"strings"
)

const answerInstruction = "Answer based on the context provided. Include relevant citations."

// ComposePrompt 将召回片段按检索顺序拼接为带编号的上下文，并附加作答指令。
// 无召回结果时直接返回原始问题（不附加 grounding 指令）。
func ComposePrompt(query string, segments []RetrievedSegment) string {
	if len(segments) == 0 {
		return query
	}

	var sb strings.Builder
	sb.WriteString("Context information is below:\n")
	for idx, s := range segments {
		fmt.Fprintf(&sb, "\n---\nDocument %d:\n%s\n", idx+1, s.Text)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString(answerInstruction)
	return sb.String()
}
