// Package stream implements the server-sent-event side of a chat turn: it
// parses OpenAI-shaped completion records, accumulates streamed tool-call
// fragments, dispatches completed calls and splices their results back into
// the outbound event stream.
package stream

import "fmt"

// Kind tags a decoded upstream record.
type Kind int

const (
	KindContent Kind = iota + 1
	KindToolCall
	KindFinish
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindToolCall:
		return "tool_call"
	case KindFinish:
		return "finish"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fragment is one streamed piece of a tool call. ID and Name are usually
// present only on the first fragment of an index.
type Fragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Record is one classified unit of the upstream stream. Only the payload
// field matching Kind is set.
type Record struct {
	Kind Kind

	// Content is the text delta of a KindContent record.
	Content string
	// Fragment is set for KindToolCall.
	Fragment Fragment
	// FinishReason is set for KindFinish.
	FinishReason string

	// Raw is the JSON object the record was decoded from; nil for KindDone.
	Raw []byte
}
