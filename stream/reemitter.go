package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/sjson"

	"toolchat/tools"
)

// Dispatcher runs one completed tool call. *tools.Invoker implements it.
type Dispatcher interface {
	Invoke(ctx context.Context, call tools.Call) tools.Result
}

// ToolResultEvent and ToolErrorEvent are the records synthesized for a
// dispatched tool call.
type ToolResultEvent struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Result string `json:"result"`
}

type ToolErrorEvent struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

type contentDelta struct {
	Content string `json:"content"`
}

type contentChoice struct {
	Delta contentDelta `json:"delta"`
}

// contentEvent mirrors an upstream content delta so clients render spliced
// tool output like any other token.
type contentEvent struct {
	Choices []contentChoice `json:"choices"`
	ChatID  string          `json:"chatId,omitempty"`
}

func newContentEvent(text, chatID string) contentEvent {
	return contentEvent{Choices: []contentChoice{{Delta: contentDelta{Content: text}}}, ChatID: chatID}
}

type Option func(*options)

type options struct {
	logger     *slog.Logger
	chatID     string
	onComplete func(text string)
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithChatID stamps every outbound content record with "chatId".
func WithChatID(id string) Option {
	return func(o *options) { o.chatID = id }
}

// OnComplete registers fn to receive the assistant text once Run returns,
// including when the client goes away or a write fails mid-stream. fn is not
// called when the text is empty.
func OnComplete(fn func(text string)) Option {
	return func(o *options) { o.onComplete = fn }
}

func (o options) complete(text string) {
	if o.onComplete != nil && text != "" {
		o.onComplete(text)
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "stream")
	return o
}

// Reemitter transforms a completion stream that may contain tool calls into
// the client-facing stream: content is forwarded as it arrives, tool calls
// are executed at the finish signal and their results spliced in.
type Reemitter struct {
	dispatcher Dispatcher
	opts       options
}

func NewReemitter(dispatcher Dispatcher, opts ...Option) *Reemitter {
	return &Reemitter{dispatcher: dispatcher, opts: buildOptions(opts)}
}

// turn is the per-stream state of one Run.
type turn struct {
	acc        *Accumulator
	transcript strings.Builder
	done       bool
}

// Run copies upstream to w until the done sentinel or end of input. Malformed
// lines are skipped. A read error ends the stream without a synthetic event
// and is returned; write errors (usually a departed client) are returned
// immediately. Either way the text forwarded so far reaches OnComplete.
func (r *Reemitter) Run(ctx context.Context, upstream io.Reader, w *Writer) error {
	t := &turn{acc: NewAccumulator()}
	defer func() { r.opts.complete(t.transcript.String()) }()
	lines := newLineReader(upstream, maxLineSize, r.opts.logger)

	for !t.done {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := lines.next()
		if line != "" {
			if err := r.processLine(ctx, t, line, w); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fmt.Errorf("upstream stream failed: %w", readErr)
		}
	}

	if n := t.acc.Len(); n > 0 {
		r.opts.logger.Warn("stream ended with unfinished tool calls", "count", n)
	}
	return nil
}

func (r *Reemitter) processLine(ctx context.Context, t *turn, line string, w *Writer) error {
	recs, err := ParseLine(line)
	if err != nil {
		r.opts.logger.Debug("dropping stream line", "line", strings.TrimSpace(line), "error", err)
		return nil
	}

	for _, rec := range recs {
		switch rec.Kind {
		case KindDone:
			t.done = true
			return w.WriteDone()

		case KindToolCall:
			t.acc.Add(rec.Fragment)

		case KindContent:
			out, err := withChatID(rec.Raw, r.opts.chatID)
			if err != nil {
				r.opts.logger.Warn("failed to stamp chat id", "error", err)
				out = rec.Raw
			}
			if err := w.WriteData(out); err != nil {
				return err
			}
			t.transcript.WriteString(rec.Content)

		case KindFinish:
			for _, call := range t.acc.Finish() {
				if err := r.dispatch(ctx, t, call, w); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dispatch runs one call and writes its result record plus the continuation
// text, in that order.
func (r *Reemitter) dispatch(ctx context.Context, t *turn, call PendingToolCall, w *Writer) error {
	r.opts.logger.Debug("dispatching tool call", "tool", call.Name, "id", call.ID, "index", call.Index)

	res := r.dispatcher.Invoke(ctx, tools.Call{ID: call.ID, Name: call.Name, Arguments: call.Arguments})

	var text string
	if res.Success {
		rendered := tools.Format(res.ToolName, res.Data)
		if err := w.WriteJSON(ToolResultEvent{Type: "tool_result", ID: call.ID, Result: rendered}); err != nil {
			return err
		}
		text = "\n" + rendered
	} else {
		msg := res.Error
		if msg == "" {
			msg = "Tool execution failed"
		}
		if err := w.WriteJSON(ToolErrorEvent{Type: "tool_error", ID: call.ID, Error: msg}); err != nil {
			return err
		}
		text = "\n[Tool Error] " + msg
	}

	if err := w.WriteJSON(newContentEvent(text, r.opts.chatID)); err != nil {
		return err
	}
	t.transcript.WriteString(text)
	return nil
}

func withChatID(raw []byte, chatID string) ([]byte, error) {
	if chatID == "" {
		return raw, nil
	}
	return sjson.SetBytes(raw, "chatId", chatID)
}
