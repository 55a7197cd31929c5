package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/application/answer"
	"doc-qa-api/internal/interfaces/http/dto"
	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

// Asker 问答入口
type Asker interface {
	Ask(ctx context.Context, question string) (*answer.Session, <-chan answer.Event, error)
}

// ChatHandler 流式问答处理器
type ChatHandler struct {
	asker Asker
}

// NewChatHandler 创建问答处理器
func NewChatHandler(asker Asker) *ChatHandler {
	return &ChatHandler{asker: asker}
}

// Chat 流式问答。所有结果（包括检索失败）都以 SSE 事件返回：
// 逐段 {"content"}，随后一次 {"sources"}，最后 [DONE]；出错时以 {"error"} 结束。
// @Summary 流式问答
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param body body dto.ChatRequest true "问题"
// @Success 200 "SSE stream"
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	setSSEHeaders(c)

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeSSEError(c, "Invalid message")
		return
	}

	ctx := c.Request.Context()
	session, events, err := h.asker.Ask(ctx, req.Message)
	if err != nil {
		logger.Error(ctx, "chat request failed before generation", err)
		writeSSEError(c, clientMessage(err))
		return
	}
	logger.Debug(ctx, "chat stream opened", "session_id", session.ID())

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			switch ev.Kind {
			case answer.EventToken:
				c.SSEvent("", dto.ChatTokenEvent{Content: ev.Token})
				return true
			case answer.EventSources:
				c.SSEvent("", dto.ChatSourcesEvent{Sources: ev.Sources})
				return true
			case answer.EventDone:
				c.SSEvent("", dto.ChatDoneMarker)
				return false
			case answer.EventError:
				c.SSEvent("", dto.ChatErrorEvent{Error: clientMessage(ev.Err)})
				return false
			default:
				return true
			}
		case <-ctx.Done():
			// 客户端断开
			return false
		}
	})
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

func writeSSEError(c *gin.Context, message string) {
	c.Status(http.StatusOK)
	c.SSEvent("", dto.ChatErrorEvent{Error: message})
	c.Writer.Flush()
}

// clientMessage 仅暴露错误消息与详情，不透出底层原因
func clientMessage(err error) string {
	appErr := errors.AsAppError(err)
	if appErr.Detail != "" {
		return appErr.Message + ": " + appErr.Detail
	}
	return appErr.Message
}
