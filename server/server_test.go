package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"toolchat/model"
	"toolchat/provider"
	"toolchat/provider/testutil"
	"toolchat/storage"
	"toolchat/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	handler  http.Handler
	store    *storage.Store
	mock     *testutil.MockProvider
	registry *tools.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mock := testutil.NewMockProvider("mock")
	models := provider.NewRegistry()
	models.Add(model.ModelInfo{ID: "mock-chat", Name: "Mock", Provider: "mock", Model: "mock-1"}, mock, model.ChatOptions{Model: "mock-1"})

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Tool{
		Name:        "status.check",
		Description: "Report service status",
		Func: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}))
	require.NoError(t, reg.Register(tools.Tool{
		Name: "status.fail",
		Func: func(context.Context, map[string]any) (any, error) {
			return nil, io.ErrUnexpectedEOF
		},
	}))

	s := New(models, store, tools.NewInvoker(reg), nil)
	return &fixture{handler: s.Handler(), store: store, mock: mock, registry: reg}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// dataLines returns the payloads of every data record in body.
func dataLines(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			out = append(out, payload)
		}
	}
	return out
}

func chatBody(t *testing.T, req chatRequest) string {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestChatRelaysAndPersists(t *testing.T) {
	f := newFixture(t)
	f.mock.Stream = testutil.ContentRecord("Hello") + testutil.ContentRecord(" there") + testutil.FinishRecord + testutil.DoneRecord

	rec := f.do(http.MethodPost, "/api/chat", chatBody(t, chatRequest{
		Messages: testutil.SingleUserMessage("Say hello"),
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	lines := dataLines(rec.Body.String())
	require.Len(t, lines, 3)
	assert.Equal(t, "Hello", gjson.Get(lines[0], "choices.0.delta.content").String())
	assert.Equal(t, "[DONE]", lines[2])

	chatID := gjson.Get(lines[0], "chatId").String()
	require.NotEmpty(t, chatID)
	assert.Equal(t, chatID, gjson.Get(lines[1], "chatId").String())

	msgs, err := f.store.Messages(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "Say hello", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Hello there", msgs[1].Content)

	chat, err := f.store.GetChat(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, "mock-chat", chat.ModelID)
	assert.Equal(t, "Say hello", chat.Title)

	calls := f.mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mock-1", calls[0].Options.Model)
	assert.Empty(t, calls[0].Options.Tools)
}

func TestChatReusesExistingChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chatID, err := f.store.EnsureChat(ctx, "", "mock-chat", "first")
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/chat", chatBody(t, chatRequest{
		Messages: testutil.TestMessages(),
		ChatID:   chatID,
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chatId":"`+chatID+`"`)

	msgs, err := f.store.Messages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Can you help me with a task?", msgs[0].Content)
	assert.Equal(t, "Mock response", msgs[1].Content)
}

func TestToolChatDispatchesTools(t *testing.T) {
	f := newFixture(t)
	f.mock.Stream = testutil.ToolCallRecord(0, "c1", "status.check", `{"verbose"`) +
		testutil.ToolCallRecord(0, "", "", `:true}`) +
		testutil.FinishRecord +
		testutil.DoneRecord

	rec := f.do(http.MethodPost, "/api/tools/chat", chatBody(t, chatRequest{
		Messages: testutil.SingleUserMessage("Is everything up?"),
		ModelID:  "mock-chat",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := dataLines(rec.Body.String())
	require.Len(t, lines, 3)
	assert.Equal(t, "tool_result", gjson.Get(lines[0], "type").String())
	assert.Equal(t, "c1", gjson.Get(lines[0], "id").String())
	rendered := tools.PrettyJSON(map[string]any{"ok": true})
	assert.Equal(t, rendered, gjson.Get(lines[0], "result").String())
	assert.Equal(t, "\n"+rendered, gjson.Get(lines[1], "choices.0.delta.content").String())
	assert.NotEmpty(t, gjson.Get(lines[1], "chatId").String())
	assert.Equal(t, "[DONE]", lines[2])

	calls := f.mock.Calls()
	require.Len(t, calls, 1)
	names := make([]string, 0, len(calls[0].Options.Tools))
	for _, tool := range calls[0].Options.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"status.check", "status.fail"}, names)
}

func TestToolChatReportsToolErrors(t *testing.T) {
	f := newFixture(t)
	f.mock.Stream = testutil.ToolCallRecord(0, "c9", "status.missing", `{}`) + testutil.FinishRecord + testutil.DoneRecord

	rec := f.do(http.MethodPost, "/api/tools/chat", chatBody(t, chatRequest{
		Messages: testutil.SingleUserMessage("check"),
		ModelID:  "mock-chat",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := dataLines(rec.Body.String())
	require.NotEmpty(t, lines)
	assert.Equal(t, "tool_error", gjson.Get(lines[0], "type").String())
	assert.Equal(t, "c9", gjson.Get(lines[0], "id").String())
	assert.Contains(t, gjson.Get(lines[0], "error").String(), "tool not found")
}

func TestChatSetupErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		upstream error
		wantCode int
		wantErr  string
	}{
		{
			name:     "bad json",
			path:     "/api/chat",
			body:     `{"messages":`,
			wantCode: http.StatusBadRequest,
			wantErr:  genericChatError,
		},
		{
			name:     "tool chat needs model",
			path:     "/api/tools/chat",
			body:     `{"messages":[{"role":"user","content":"hi"}]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "Model ID is required",
		},
		{
			name:     "unknown model",
			path:     "/api/chat",
			body:     `{"messages":[{"role":"user","content":"hi"}],"modelId":"nope"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  genericChatError,
		},
		{
			name:     "empty conversation",
			path:     "/api/chat",
			body:     `{"messages":[]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  model.ErrEmptyConversation.Error(),
		},
		{
			name:     "orphan tool message",
			path:     "/api/chat",
			body:     `{"messages":[{"role":"user","content":"hi"},{"role":"tool","content":"x","tool_call_id":"c1"}]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "tool message does not reference",
		},
		{
			name:     "upstream status",
			path:     "/api/chat",
			body:     `{"messages":[{"role":"user","content":"hi"}]}`,
			upstream: &provider.StatusError{StatusCode: 500, Body: "boom"},
			wantCode: http.StatusBadGateway,
			wantErr:  genericChatError,
		},
		{
			name:     "upstream unreachable",
			path:     "/api/tools/chat",
			body:     `{"messages":[{"role":"user","content":"hi"}],"modelId":"mock-chat"}`,
			upstream: io.ErrUnexpectedEOF,
			wantCode: http.StatusServiceUnavailable,
			wantErr:  genericChatError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.upstream != nil {
				f.mock.GenerateFunc = func(context.Context, []model.Message, model.ChatOptions) (io.ReadCloser, error) {
					return nil, tt.upstream
				}
			}

			rec := f.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, gjson.Get(rec.Body.String(), "error").String(), tt.wantErr)
		})
	}
}

func TestDeleteChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chatID, err := f.store.EnsureChat(ctx, "", "mock-chat", "to delete")
	require.NoError(t, err)
	_, err = f.store.SaveMessage(ctx, chatID, "user", "to delete")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/chat", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/chat?id=missing", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/chat?chatId="+chatID, "").Code)

	_, err = f.store.GetChat(ctx, chatID)
	assert.ErrorIs(t, err, storage.ErrChatNotFound)
}

func TestModelsAndTools(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mock-chat", gjson.Get(rec.Body.String(), "default").String())
	assert.Equal(t, "mock-1", gjson.Get(rec.Body.String(), "models.0.model").String())

	rec = f.do(http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "function", gjson.Get(rec.Body.String(), "tools.0.type").String())
	assert.Equal(t, "status.check", gjson.Get(rec.Body.String(), "tools.0.function.name").String())
	assert.Equal(t, "object", gjson.Get(rec.Body.String(), "tools.0.function.parameters.type").String())

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/api/models", "").Code)
}

func TestInvokeTools(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tools/invoke", `{"calls":[
		{"id":"a","name":"status.fail","arguments":"{}"},
		{"id":"b","name":"status.check","arguments":""}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp invokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, "b", resp.Results[1].ID)
	assert.True(t, resp.Results[1].Success)
	assert.Equal(t, "❌ status.fail: "+resp.Results[0].Error+"\n✅ status.check: Successfully executed", resp.Summary)
	assert.Contains(t, resp.Formatted, "### status.check")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/tools/invoke", `{"calls":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/tools/invoke", `{"calls":[{"id":"x"}]}`).Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}
