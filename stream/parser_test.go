package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func kinds(recs []Record) []Kind {
	out := make([]Kind, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Kind)
	}
	return out
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantKinds []Kind
		wantErr   error
	}{
		{name: "blank", line: "   ", wantKinds: []Kind{}},
		{name: "done sentinel", line: "data: [DONE]", wantKinds: []Kind{KindDone}},
		{name: "done without space", line: "data:[DONE]", wantKinds: []Kind{KindDone}},
		{name: "content", line: `data: {"choices":[{"delta":{"content":"Hi"}}]}`, wantKinds: []Kind{KindContent}},
		{name: "raw json without prefix", line: `{"choices":[{"delta":{"content":"Hi"}}]}`, wantKinds: []Kind{KindContent}},
		{name: "empty content", line: `data: {"choices":[{"delta":{"content":""}}]}`, wantKinds: []Kind{}},
		{name: "role only", line: `data: {"choices":[{"delta":{"role":"assistant"}}]}`, wantKinds: []Kind{}},
		{name: "no choices", line: `data: {"id":"x"}`, wantKinds: []Kind{}},
		{name: "finish stop", line: `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`, wantKinds: []Kind{KindFinish}},
		{name: "finish tool_calls", line: `data: {"choices":[{"finish_reason":"tool_calls"}]}`, wantKinds: []Kind{KindFinish}},
		{name: "finish length ignored", line: `data: {"choices":[{"finish_reason":"length"}]}`, wantKinds: []Kind{}},
		{name: "trailing bytes after object", line: `data: {"choices":[{"finish_reason":"stop"}]}]}`, wantKinds: []Kind{KindFinish}},
		{name: "content and finish", line: `data: {"choices":[{"delta":{"content":"."},"finish_reason":"stop"}]}`, wantKinds: []Kind{KindContent, KindFinish}},
		{
			name:      "two tool call entries",
			line:      `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"x.y","arguments":""}},{"index":1,"id":"b","function":{"name":"x.z","arguments":"{}"}}]}}]}`,
			wantKinds: []Kind{KindToolCall, KindToolCall},
		},
		{name: "not json", line: "data: not-json", wantErr: ErrMalformedRecord},
		{name: "truncated json", line: `data: {"choices":[{"delta":`, wantErr: ErrMalformedRecord},
		{name: "empty payload", line: "data: ", wantErr: ErrMalformedRecord},
		{name: "array payload", line: "data: [1,2]", wantErr: ErrNotObject},
		{name: "string payload", line: `data: "hi"`, wantErr: ErrNotObject},
		{name: "event line", line: "event: ping", wantErr: ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, recs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKinds, kinds(recs))
		})
	}
}

func TestParseLine_ToolCallFields(t *testing.T) {
	recs, err := ParseLine(`data: {"choices":[{"delta":{"tool_calls":[{"index":2,"id":"call_9","type":"function","function":{"name":"opsgenie.getAlerts","arguments":"{\"limit\""}}]}}]}`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, Fragment{Index: 2, ID: "call_9", Name: "opsgenie.getAlerts", Arguments: `{"limit"`}, recs[0].Fragment)

	// A missing index falls back to the entry's position.
	recs, err = ParseLine(`data: {"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"a"}},{"function":{"arguments":"b"}}]}}]}`)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Fragment.Index)
	assert.Equal(t, 1, recs[1].Fragment.Index)
	assert.Equal(t, "b", recs[1].Fragment.Arguments)
}

func TestParseChunk_DropsOnlyMalformedLines(t *testing.T) {
	chunk := []byte("data: not-json\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n\n" +
		"data: {broken\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n" +
		"garbage\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"three\"}}]}\n")

	recs := ParseChunk(chunk, nil)
	require.Len(t, recs, 3)
	assert.Equal(t, "one", recs[0].Content)
	assert.Equal(t, "two", recs[1].Content)
	assert.Equal(t, "three", recs[2].Content)
}

func TestParseChunk_StopsAtDone(t *testing.T) {
	chunk := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")

	recs := ParseChunk(chunk, nil)
	assert.Equal(t, []Kind{KindContent, KindDone}, kinds(recs))
}
