package stream

import "strings"

// PendingToolCall is a tool call reassembled from its fragments.
type PendingToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

type pending struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// Accumulator buffers tool-call fragments by index until a finish signal.
// Calls for several indexes may be open at once; they are released in the
// order their first fragment arrived. An Accumulator belongs to one stream
// and is not safe for concurrent use.
type Accumulator struct {
	order []*pending
	byIdx map[int]*pending
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byIdx: make(map[int]*pending)}
}

// Add folds a fragment into the call for its index, creating the call on
// first sight. Arguments are concatenated verbatim; a later non-empty name
// replaces the current one and a missing id is filled in.
func (a *Accumulator) Add(f Fragment) {
	p, ok := a.byIdx[f.Index]
	if !ok {
		p = &pending{index: f.Index, id: f.ID, name: f.Name}
		a.byIdx[f.Index] = p
		a.order = append(a.order, p)
	}

	p.args.WriteString(f.Arguments)
	if f.Name != "" {
		p.name = f.Name
	}
	if p.id == "" && f.ID != "" {
		p.id = f.ID
	}
}

// Finish releases every buffered call and resets the accumulator. It returns
// nil when nothing is pending.
func (a *Accumulator) Finish() []PendingToolCall {
	if len(a.order) == 0 {
		return nil
	}

	calls := make([]PendingToolCall, 0, len(a.order))
	for _, p := range a.order {
		calls = append(calls, PendingToolCall{
			Index:     p.index,
			ID:        p.id,
			Name:      p.name,
			Arguments: p.args.String(),
		})
	}

	a.order = nil
	clear(a.byIdx)
	return calls
}

// Len reports how many calls are buffered.
func (a *Accumulator) Len() int {
	return len(a.order)
}
