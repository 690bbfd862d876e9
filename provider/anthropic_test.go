package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolchat/model"
	"toolchat/provider/testutil"
	"toolchat/stream"
)

const anthropicEvents = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"opsgenie__getAlerts","input":{}}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"limit\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"5}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":20}}

event: message_stop
data: {"type":"message_stop"}

`

func TestAnthropicProvider_TranslatesEvents(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, anthropicEvents)
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "sk-ant", HTTPClient: srv.Client()})
	require.NoError(t, err)

	rc, err := p.GenerateChatCompletion(context.Background(), testutil.ToolConversation(), model.ChatOptions{Tools: testutil.TestMCPTools()})
	require.NoError(t, err)

	recs := readRecords(t, rc)
	text, calls, kinds := accumulate(recs)
	assert.Equal(t, "Checking", text)
	require.Len(t, calls, 1)
	assert.Equal(t, stream.PendingToolCall{Index: 0, ID: "toolu_1", Name: "opsgenie.getAlerts", Arguments: `{"limit":5}`}, calls[0])
	assert.Equal(t, []stream.Kind{stream.KindContent, stream.KindToolCall, stream.KindToolCall, stream.KindToolCall, stream.KindFinish, stream.KindDone}, kinds)
	assert.Equal(t, "tool_calls", recs[len(recs)-2].FinishReason)

	assert.Equal(t, true, body["stream"])
	assert.Equal(t, 4096.0, body["max_tokens"])

	system := body["system"].([]any)
	require.Len(t, system, 2)
	assert.Equal(t, "You are an on-call assistant.", system[1].(map[string]any)["text"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	toolUse := msgs[1].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_use", toolUse["type"])
	assert.Equal(t, "opsgenie__getAlerts", toolUse["name"])
	assert.Equal(t, map[string]any{"limit": 5.0}, toolUse["input"])
	toolResult := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", toolResult["type"])
	assert.Equal(t, "call_1", toolResult["tool_use_id"])
}

func TestAnthropicProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "bad", HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = p.GenerateChatCompletion(context.Background(), testutil.SingleUserMessage("hi"), model.ChatOptions{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, "tool_calls", finishReason("tool_use"))
	assert.Equal(t, "length", finishReason("max_tokens"))
	assert.Equal(t, "stop", finishReason("end_turn"))
	assert.Equal(t, "stop", finishReason(""))
}
