package callback

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"doc-qa-api/internal/domain/service"
	"doc-qa-api/pkg/metrics"
)

func TestEmbeddingCallback_CountsByWorkflow(t *testing.T) {
	h := newEmbeddingCallbackHandler()
	ctx := service.WithWorkflow(context.Background(), "cb-test-embed")

	success := metrics.EmbeddingCallTotal.WithLabelValues("cb-test-embed", "success")
	failure := metrics.EmbeddingCallTotal.WithLabelValues("cb-test-embed", "error")
	before, beforeErr := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	c := h.OnStart(ctx, nil, &embedding.CallbackInput{Texts: []string{"a", "b"}, Config: &embedding.Config{Model: "nomic-embed-text"}})
	h.OnEnd(c, nil, &embedding.CallbackOutput{})
	c = h.OnStart(ctx, nil, &embedding.CallbackInput{Texts: []string{"c"}})
	h.OnError(c, nil, stderrors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(failure))
}

func TestChatModelCallback_StreamOutputRecordsUsage(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "cb-test-chat", "ollama")

	calls := metrics.LLMCallTotal.WithLabelValues("cb-test-chat", "ollama", "llama3.2", "success")
	tokens := metrics.LLMTokensUsed.WithLabelValues("cb-test-chat", "ollama", "llama3.2", "completion")
	before, beforeTokens := testutil.ToFloat64(calls), testutil.ToFloat64(tokens)

	sr, sw := schema.Pipe[*model.CallbackOutput](2)
	sw.Send(&model.CallbackOutput{Config: &model.Config{Model: "llama3.2"}}, nil)
	sw.Send(&model.CallbackOutput{TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 7}}, nil)
	sw.Close()

	c := h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "llama3.2"}})
	h.OnEndWithStreamOutput(c, nil, sr)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(calls) == before+1 && testutil.ToFloat64(tokens) == beforeTokens+7
	}, 2*time.Second, 10*time.Millisecond)
}
