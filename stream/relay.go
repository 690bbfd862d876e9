package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Relay forwards a plain completion stream (no tools) to the client. Data
// records carrying content are forwarded with the chat id stamped in; other
// data records, blank lines and upstream sentinels are dropped, and lines
// that are not data records pass through untouched. Exactly one done
// sentinel is written once upstream ends. Text already relayed is handed to
// OnComplete however Run returns.
type Relay struct {
	opts options
}

func NewRelay(opts ...Option) *Relay {
	return &Relay{opts: buildOptions(opts)}
}

func (r *Relay) Run(ctx context.Context, upstream io.Reader, w *Writer) error {
	var transcript strings.Builder
	defer func() { r.opts.complete(transcript.String()) }()
	lines := newLineReader(upstream, maxLineSize, r.opts.logger)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := lines.next()
		if line != "" {
			text, err := r.relayLine(line, w)
			if err != nil {
				return err
			}
			transcript.WriteString(text)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fmt.Errorf("upstream stream failed: %w", readErr)
		}
	}

	return w.WriteDone()
}

// relayLine writes what line contributes to the client and returns its
// content text.
func (r *Relay) relayLine(line string, w *Writer) (string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed == doneSentinel {
		return "", nil
	}
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return "", w.WriteRaw(strings.TrimRight(line, "\r\n"))
	}

	recs, err := ParseLine(trimmed)
	if err != nil {
		r.opts.logger.Debug("dropping stream line", "line", trimmed, "error", err)
		return "", nil
	}

	var text strings.Builder
	for _, rec := range recs {
		if rec.Kind != KindContent {
			continue
		}
		out, err := withChatID(rec.Raw, r.opts.chatID)
		if err != nil {
			r.opts.logger.Warn("failed to stamp chat id", "error", err)
			out = rec.Raw
		}
		if err := w.WriteData(out); err != nil {
			return "", err
		}
		text.WriteString(rec.Content)
	}
	return text.String(), nil
}
