package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "data: [DONE]"
	donePayload  = "[DONE]"
)

var (
	ErrMalformedRecord = errors.New("malformed stream record")
	ErrNotObject       = errors.New("stream record is not a JSON object")
)

// Finish reasons that complete a turn's tool calls.
var terminalFinishReasons = map[string]bool{
	"stop":          true,
	"tool_calls":    true,
	"function_call": true,
}

// ParseLine decodes one line of an event stream. Blank lines and objects
// carrying nothing of interest yield no records and no error.
//
// A single object may yield several records, always in the order tool-call
// fragments, content, finish, so a delta that carries text and a finish
// reason loses neither.
func ParseLine(line string) ([]Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if line == doneSentinel {
		return []Record{{Kind: KindDone}}, nil
	}

	payload := line
	if rest, ok := strings.CutPrefix(line, dataPrefix); ok {
		payload = strings.TrimSpace(rest)
		if payload == donePayload {
			return []Record{{Kind: KindDone}}, nil
		}
	}

	raw, err := leadingObject(payload)
	if err != nil {
		return nil, err
	}
	return classify(raw), nil
}

// leadingObject returns the first JSON value of payload, which must be an
// object. Bytes after a complete value are ignored.
func leadingObject(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedRecord)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotObject
	}
	return raw, nil
}

func classify(raw []byte) []Record {
	choice := gjson.GetBytes(raw, "choices.0")
	if !choice.Exists() {
		return nil
	}

	var out []Record

	for i, tc := range choice.Get("delta.tool_calls").Array() {
		if !tc.IsObject() {
			continue
		}
		index := i
		if idx := tc.Get("index"); idx.Type == gjson.Number {
			index = int(idx.Int())
		}
		out = append(out, Record{
			Kind: KindToolCall,
			Fragment: Fragment{
				Index:     index,
				ID:        tc.Get("id").String(),
				Name:      tc.Get("function.name").String(),
				Arguments: tc.Get("function.arguments").String(),
			},
			Raw: raw,
		})
	}

	if content := choice.Get("delta.content"); content.Type == gjson.String && content.Str != "" {
		out = append(out, Record{Kind: KindContent, Content: content.Str, Raw: raw})
	}

	if reason := choice.Get("finish_reason").String(); terminalFinishReasons[reason] {
		out = append(out, Record{Kind: KindFinish, FinishReason: reason, Raw: raw})
	}

	return out
}

// ParseChunk splits one transport chunk into lines and decodes each.
// Malformed lines are logged and dropped. Lines after a done sentinel are not
// processed.
func ParseChunk(chunk []byte, logger *slog.Logger) []Record {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var out []Record
	for line := range strings.Lines(string(chunk)) {
		recs, err := ParseLine(line)
		if err != nil {
			logger.Debug("dropping stream line", "line", strings.TrimSpace(line), "error", err)
			continue
		}
		out = append(out, recs...)
		if len(recs) > 0 && recs[len(recs)-1].Kind == KindDone {
			break
		}
	}
	return out
}
