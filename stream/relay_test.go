package stream

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay(t *testing.T) {
	input := ": keep-alive\n" +
		contentLine("Hel") +
		"data: [DONE]\n\n" +
		"data: {oops\n\n" +
		`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
		contentLine("lo") +
		finishLine +
		"data: [DONE]\n\n"

	var saved string
	r := NewRelay(WithChatID("c-1"), OnComplete(func(text string) { saved = text }))

	var out bytes.Buffer
	require.NoError(t, r.Run(context.Background(), iotest.HalfReader(strings.NewReader(input)), NewWriter(&out)))

	want := ": keep-alive\n" +
		`data: {"choices":[{"delta":{"content":"Hel"}}],"chatId":"c-1"}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"lo"}}],"chatId":"c-1"}` + "\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, "Hello", saved)
}

func TestRelay_AlwaysTerminates(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewRelay().Run(context.Background(), strings.NewReader(""), NewWriter(&out)))
	assert.Equal(t, "data: [DONE]\n\n", out.String())
}

func TestWriter_HeadersAndFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())

	w := NewWriter(rec)
	require.NoError(t, w.WriteJSON(map[string]string{"text": "<b>&"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, `data: {"text":"<b>&"}`+"\n\n", rec.Body.String())
}

// hangupWriter stands in for a client that goes away after the first record
// reaches it.
type hangupWriter struct {
	bytes.Buffer
	cancel context.CancelFunc
}

func (h *hangupWriter) Write(p []byte) (int, error) {
	h.cancel()
	return h.Buffer.Write(p)
}

func TestRelay_SavesTextOnClientHangup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var saved []string
	r := NewRelay(OnComplete(func(text string) { saved = append(saved, text) }))

	out := &hangupWriter{cancel: cancel}
	err := r.Run(ctx, strings.NewReader(contentLine("hello")+contentLine(" world")), NewWriter(out))

	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), `"content":"hello"`)
	assert.Equal(t, []string{"hello"}, saved)
}

func TestRelay_SavesNothingWhenWriteFailsFirst(t *testing.T) {
	var saved []string
	r := NewRelay(OnComplete(func(text string) { saved = append(saved, text) }))

	err := r.Run(context.Background(), strings.NewReader(contentLine("hello")), NewWriter(failingWriter{}))

	require.EqualError(t, err, "client went away")
	assert.Empty(t, saved)
}

func TestRelay_DropsOversizedLine(t *testing.T) {
	var saved string
	r := NewRelay(OnComplete(func(text string) { saved = text }))

	huge := "data: " + strings.Repeat("x", 2*maxLineSize) + "\n\n"
	var out bytes.Buffer
	require.NoError(t, r.Run(context.Background(), strings.NewReader(huge+contentLine("ok")), NewWriter(&out)))

	assert.Equal(t, `data: {"choices":[{"delta":{"content":"ok"}}]}`+"\n\n"+"data: [DONE]\n\n", out.String())
	assert.Equal(t, "ok", saved)
}
