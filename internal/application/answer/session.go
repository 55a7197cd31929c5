package answer

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
)

// State 生成会话状态：Idle -> Streaming -> Completed | Failed
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSessionStarted 会话只能启动一次
var ErrSessionStarted = errors.New(errors.CodeInternalError, "generation session already started")

// Session 一次流式生成会话。事件通过无缓冲 channel 按产生顺序推送，
// channel 关闭后 State/Response 为最终值。
type Session struct {
	id        string
	chatModel model.BaseChatModel
	segments  []retrieval.RetrievedSegment

	state atomic.Int32

	mu       sync.Mutex
	response strings.Builder
	usage    *schema.TokenUsage
}

// NewSession segments 为本次检索结果，生成结束后据此输出引用
func NewSession(chatModel model.BaseChatModel, segments []retrieval.RetrievedSegment) *Session {
	return &Session{
		id:        uuid.NewString(),
		chatModel: chatModel,
		segments:  segments,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Response 已累积的完整回答（仅用于观测，不会重复下发）
func (s *Session) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response.String()
}

// Start 开始消费流式生成能力。生成失败通过 EventError 在流内报告；
// 仅当会话不处于 Idle 时返回错误。ctx 取消后会话停止拉取并释放底层流。
func (s *Session) Start(ctx context.Context, prompt string) (<-chan Event, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		return nil, ErrSessionStarted.WithDetail("state=" + s.State().String())
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)

	ch := make(chan Event)
	go s.run(ctx, prompt, ch)
	return ch, nil
}

func (s *Session) run(ctx context.Context, prompt string, ch chan<- Event) {
	defer close(ch)
	start := time.Now()

	reader, err := s.chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		s.fail(ctx, ch, err)
		return
	}
	defer reader.Close()

	fragments := 0
	for {
		msg, recvErr := reader.Recv()
		if stderrors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			s.fail(ctx, ch, recvErr)
			return
		}
		if msg == nil {
			continue
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			s.setUsage(msg.ResponseMeta.Usage)
		}
		if msg.Content == "" {
			continue
		}

		s.appendResponse(msg.Content)
		fragments++
		metrics.GenerationTokensTotal.Inc()
		if !emit(ctx, ch, Event{Kind: EventToken, Token: msg.Content}) {
			s.abort(ctx, fragments)
			return
		}
	}

	if len(s.segments) > 0 {
		if !emit(ctx, ch, Event{Kind: EventSources, Sources: retrieval.AttributeAll(s.segments)}) {
			s.abort(ctx, fragments)
			return
		}
	}
	if !emit(ctx, ch, Event{Kind: EventDone}) {
		s.abort(ctx, fragments)
		return
	}

	s.state.Store(int32(StateCompleted))
	metrics.GenerationSessionsTotal.WithLabelValues(StateCompleted.String()).Inc()
	args := []any{
		"fragments", fragments,
		"response_length", len(s.Response()),
		"sources", len(s.segments),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if u := s.tokenUsage(); u != nil {
		args = append(args, "prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens)
	}
	logger.Info(ctx, "generation session completed", args...)
}

// fail 在流内报告生成错误；已下发的 token 不会撤回
func (s *Session) fail(ctx context.Context, ch chan<- Event, cause error) {
	s.state.Store(int32(StateFailed))
	metrics.GenerationSessionsTotal.WithLabelValues(StateFailed.String()).Inc()

	err := errors.ErrGenerationFailed.WithError(cause)
	logger.Error(ctx, "generation session failed", cause, "response_length", len(s.Response()))
	emit(ctx, ch, Event{Kind: EventError, Err: err})
}

// abort 下游断开：停止拉取，不再发送任何事件
func (s *Session) abort(ctx context.Context, fragments int) {
	s.state.Store(int32(StateFailed))
	metrics.GenerationSessionsTotal.WithLabelValues("cancelled").Inc()
	logger.Warn(ctx, "generation session cancelled by consumer",
		"fragments", fragments,
		"reason", context.Cause(ctx),
	)
}

func (s *Session) appendResponse(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response.WriteString(fragment)
}

func (s *Session) setUsage(u *schema.TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = u
}

func (s *Session) tokenUsage() *schema.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
