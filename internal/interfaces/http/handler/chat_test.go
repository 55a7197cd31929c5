package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/application/answer"
	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/infrastructure/persistence/memory"
	"doc-qa-api/internal/interfaces/http/dto"
	"doc-qa-api/internal/testutil/mocks"
	"doc-qa-api/pkg/errors"
)

const testDim = 32

type askerFunc func(ctx context.Context, q string) (*answer.Session, <-chan answer.Event, error)

func (f askerFunc) Ask(ctx context.Context, q string) (*answer.Session, <-chan answer.Event, error) {
	return f(ctx, q)
}

type staticModels struct{ cm model.BaseChatModel }

func (m staticModels) Get(context.Context, string) (model.BaseChatModel, error) { return m.cm, nil }

func newChatServer(t *testing.T, asker Asker) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.POST("/v1/chat", NewChatHandler(asker).Chat)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func newAnswerService(t *testing.T, cm model.BaseChatModel, docText string) *answer.Service {
	t.Helper()
	emb := mocks.NewMockEmbedder(testDim)
	store := memory.NewStore(testDim)
	if docText != "" {
		_, err := retrieval.NewIndexer(emb, store, retrieval.IndexerOptions{Dimension: testDim}).
			Ingest(context.Background(), retrieval.IngestInput{DocumentName: "guide.pdf", Text: docText})
		require.NoError(t, err)
	}
	engine := retrieval.NewEngine(emb, store, testDim, 4, 50)
	return answer.NewService(engine, staticModels{cm: cm}, "", 4)
}

func postChat(t *testing.T, srv *httptest.Server, body string) []string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out []string
	for _, block := range strings.Split(string(raw), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data:"), "unexpected SSE block %q", block)
		out = append(out, strings.TrimSpace(strings.TrimPrefix(block, "data:")))
	}
	return out
}

func TestChat_StreamsTokensSourcesThenDone(t *testing.T) {
	cm := &mocks.MockChatModel{Tokens: []string{"Two", " years."}}
	svc := newAnswerService(t, cm, strings.Repeat("The warranty covers parts and labour for two years. ", 30))
	srv := newChatServer(t, svc)

	data := postChat(t, srv, `{"message":"How long is the warranty?"}`)
	require.Len(t, data, 4)

	var tok dto.ChatTokenEvent
	require.NoError(t, json.Unmarshal([]byte(data[0]), &tok))
	assert.Equal(t, "Two", tok.Content)
	require.NoError(t, json.Unmarshal([]byte(data[1]), &tok))
	assert.Equal(t, " years.", tok.Content)

	var src dto.ChatSourcesEvent
	require.NoError(t, json.Unmarshal([]byte(data[2]), &src))
	require.Len(t, src.Sources, 2)
	assert.Equal(t, 1, src.Sources[0].Page)
	assert.True(t, strings.HasSuffix(src.Sources[0].Content, "..."))

	assert.Equal(t, "[DONE]", data[3])
}

func TestChat_EmptyIndexOmitsSources(t *testing.T) {
	cm := &mocks.MockChatModel{Tokens: []string{"I don't know."}}
	srv := newChatServer(t, newAnswerService(t, cm, ""))

	data := postChat(t, srv, `{"message":"anything?"}`)
	require.Len(t, data, 2)
	assert.JSONEq(t, `{"content":"I don't know."}`, data[0])
	assert.Equal(t, "[DONE]", data[1])
	// 无检索结果时直接使用原始问题
	assert.Equal(t, "anything?", cm.LastPrompt())
}

func TestChat_GenerationFailureIsInBand(t *testing.T) {
	cm := &mocks.MockChatModel{Tokens: []string{"partial"}, StreamErr: errors.ErrInternalError}
	srv := newChatServer(t, newAnswerService(t, cm, ""))

	data := postChat(t, srv, `{"message":"q"}`)
	require.Len(t, data, 2)
	assert.JSONEq(t, `{"content":"partial"}`, data[0])

	var ev dto.ChatErrorEvent
	require.NoError(t, json.Unmarshal([]byte(data[1]), &ev))
	assert.Equal(t, "generation failed", ev.Error)
}

func TestChat_InvalidMessage(t *testing.T) {
	called := false
	srv := newChatServer(t, askerFunc(func(context.Context, string) (*answer.Session, <-chan answer.Event, error) {
		called = true
		return nil, nil, nil
	}))

	for _, body := range []string{`{}`, `{"message":"   "}`, `not json`} {
		data := postChat(t, srv, body)
		require.Len(t, data, 1)
		assert.JSONEq(t, `{"error":"Invalid message"}`, data[0])
	}
	assert.False(t, called)
}

func TestChat_RetrievalFailureReportedAsSingleEvent(t *testing.T) {
	srv := newChatServer(t, askerFunc(func(context.Context, string) (*answer.Session, <-chan answer.Event, error) {
		return nil, nil, errors.ErrVectorDB.WithError(io.ErrUnexpectedEOF)
	}))

	data := postChat(t, srv, `{"message":"q"}`)
	require.Len(t, data, 1)
	assert.JSONEq(t, `{"error":"vector index error"}`, data[0])
}
