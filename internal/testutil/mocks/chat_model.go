package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 按脚本流式输出 Tokens；StreamErr 非空时在全部 Tokens 之后发送该错误。
// OpenErr 非空时 Stream 直接返回错误。设置 StreamFn 可完全覆盖流式行为。
type MockChatModel struct {
	Tokens    []string
	StreamErr error
	OpenErr   error
	StreamFn  func(ctx context.Context, input []*schema.Message) (*schema.StreamReader[*schema.Message], error)

	mu     sync.Mutex
	inputs [][]*schema.Message
}

var _ model.BaseChatModel = (*MockChatModel)(nil)

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(input)
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return schema.AssistantMessage(strings.Join(m.Tokens, ""), nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(input)
	if m.StreamFn != nil {
		return m.StreamFn(ctx, input)
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(m.Tokens) + 1)
	go func() {
		defer sw.Close()
		for _, tok := range m.Tokens {
			if closed := sw.Send(schema.AssistantMessage(tok, nil), nil); closed {
				return
			}
		}
		if m.StreamErr != nil {
			sw.Send(nil, m.StreamErr)
		}
	}()
	return sr, nil
}

func (m *MockChatModel) record(input []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
}

// LastPrompt 最近一次调用中最后一条消息的内容
func (m *MockChatModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return ""
	}
	last := m.inputs[len(m.inputs)-1]
	if len(last) == 0 {
		return ""
	}
	return last[len(last)-1].Content
}

// CallCount Generate/Stream 调用次数
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}
