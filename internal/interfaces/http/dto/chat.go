package dto

import "doc-qa-api/internal/application/retrieval"

// ChatRequest 问答请求
type ChatRequest struct {
	Message string `json:"message"`
}

// 以下为 SSE data 负载

type ChatTokenEvent struct {
	Content string `json:"content"`
}

type ChatSourcesEvent struct {
	Sources []retrieval.Citation `json:"sources"`
}

type ChatErrorEvent struct {
	Error string `json:"error"`
}

// ChatDoneMarker 成功结束标记
const ChatDoneMarker = "[DONE]"
