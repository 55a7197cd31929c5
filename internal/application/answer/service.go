// Package answer 提供基于检索结果的流式问答
package answer

import (
	"context"
	"strings"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/domain/service"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

// Service 问答入口：检索 -> 组装 prompt -> 启动生成会话
type Service struct {
	retriever Retriever
	models    ChatModelFactory
	provider  string
	topK      int
}

// NewService provider 为空时使用 LLM 配置的默认提供商；topK<=0 时由检索器决定
func NewService(retriever Retriever, models ChatModelFactory, provider string, topK int) *Service {
	return &Service{
		retriever: retriever,
		models:    models,
		provider:  provider,
		topK:      topK,
	}
}

// Ask 检索失败会在生成开始之前返回错误；生成阶段的错误只在事件流内报告。
func (s *Service) Ask(ctx context.Context, question string) (*Session, <-chan Event, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, nil, errors.ErrInvalidParam.WithDetail("message is required")
	}

	segments, err := s.retriever.Retrieve(ctx, q, s.topK)
	if err != nil {
		logger.Error(ctx, "retrieval failed", err)
		return nil, nil, err
	}

	chatModel, err := s.models.Get(ctx, s.provider)
	if err != nil {
		return nil, nil, errors.ErrConfiguration.WithError(err)
	}

	prompt := retrieval.ComposePrompt(q, segments)
	session := NewSession(chatModel, segments)
	events, err := session.Start(service.WithWorkflowProvider(ctx, service.WorkflowChat, s.provider), prompt)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug(ctx, "generation session started",
		"session_id", session.ID(),
		"segments", len(segments),
		"prompt_length", len(prompt),
	)
	return session, events, nil
}
