package answer

import "doc-qa-api/internal/application/retrieval"

// EventKind 生成事件类型
type EventKind int

const (
	EventToken EventKind = iota + 1
	EventSources
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventSources:
		return "sources"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event 生成事件。顺序保证：若干 token -> 至多一个 sources -> 恰好一个 done 或 error。
type Event struct {
	Kind    EventKind
	Token   string
	Sources []retrieval.Citation
	Err     error
}
