package retrieval

const (
	excerptMaxRunes = 200
	excerptEllipsis = "..."
	// 每页按 3 个片段估算；入库时没有真实分页信息，这只是启发式页码
	segmentsPerPage = 3
)

// Attribute 将检索片段映射为引用：页码 = chunk_index/3 + 1，摘录取前 200 个字符
func Attribute(seg RetrievedSegment) Citation {
	idx := seg.Meta.ChunkIndex
	if idx < 0 {
		idx = 0
	}
	return Citation{
		Page:    idx/segmentsPerPage + 1,
		Content: excerpt(seg.Text),
	}
}

// AttributeAll 保持检索顺序
func AttributeAll(segs []RetrievedSegment) []Citation {
	out := make([]Citation, 0, len(segs))
	for _, s := range segs {
		out = append(out, Attribute(s))
	}
	return out
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptMaxRunes {
		return s
	}
	return string(r[:excerptMaxRunes]) + excerptEllipsis
}
