package provider

import (
	"context"
	"encoding/json"
	"io"
)

// OpenAI-shaped chunk written by backends that have to synthesize records.
type chunk struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason,omitempty"`
}

type chunkDelta struct {
	Content   string          `json:"content,omitempty"`
	ToolCalls []chunkToolCall `json:"tool_calls,omitempty"`
}

type chunkToolCall struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function chunkFunction `json:"function"`
}

type chunkFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

const (
	finishStop      = "stop"
	finishToolCalls = "tool_calls"
	finishLength    = "length"
)

// emitter writes data records into the pipe feeding the caller's handle.
type emitter struct {
	w io.Writer
}

func (e emitter) raw(payload string) error {
	_, err := io.WriteString(e.w, "data: "+payload+"\n\n")
	return err
}

func (e emitter) chunk(c chunk) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return e.raw(string(b))
}

func (e emitter) content(text string) error {
	if text == "" {
		return nil
	}
	return e.chunk(chunk{Choices: []chunkChoice{{Delta: chunkDelta{Content: text}}}})
}

func (e emitter) toolCall(index int, id, name, arguments string) error {
	call := chunkToolCall{Index: index, ID: id, Function: chunkFunction{Name: name, Arguments: arguments}}
	if id != "" {
		call.Type = "function"
	}
	return e.chunk(chunk{Choices: []chunkChoice{{Delta: chunkDelta{ToolCalls: []chunkToolCall{call}}}}})
}

func (e emitter) finish(reason string) error {
	return e.chunk(chunk{Choices: []chunkChoice{{FinishReason: &reason}}})
}

func (e emitter) done() error {
	return e.raw("[DONE]")
}

// pipeStream runs produce in a goroutine and returns the reading end of the
// records it writes. An error from produce surfaces as a read error after
// the records already written. Close cancels the request context the
// producer reads from and waits for it to return.
type pipeStream struct {
	*io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
}

func newPipeStream(cancel context.CancelFunc, produce func(e emitter) error) io.ReadCloser {
	pr, pw := io.Pipe()
	s := &pipeStream{PipeReader: pr, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()
		pw.CloseWithError(produce(emitter{w: pw}))
	}()
	return s
}

func (s *pipeStream) Close() error {
	s.cancel()
	err := s.PipeReader.Close()
	<-s.done
	return err
}
