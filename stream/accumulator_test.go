package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_ConcatenatesInArrivalOrder(t *testing.T) {
	full := `{"query":"status:open","limit":5}`

	for _, size := range []int{1, 2, 3, 7, len(full)} {
		acc := NewAccumulator()
		acc.Add(Fragment{Index: 0, ID: "c1", Name: "opsgenie.getAlerts"})
		for i := 0; i < len(full); i += size {
			acc.Add(Fragment{Index: 0, Arguments: full[i:min(i+size, len(full))]})
		}

		calls := acc.Finish()
		require.Len(t, calls, 1, "size %d", size)
		assert.Equal(t, full, calls[0].Arguments, "size %d", size)
		assert.Equal(t, "c1", calls[0].ID)
		assert.Equal(t, "opsgenie.getAlerts", calls[0].Name)
	}
}

func TestAccumulator_FirstFragmentArgumentsKept(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{Index: 0, ID: "c1", Name: "x.y", Arguments: `{"a"`})
	acc.Add(Fragment{Index: 0, Arguments: `:1}`})

	calls := acc.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"a":1}`, calls[0].Arguments)
}

func TestAccumulator_LateNameAndID(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{Index: 0, Arguments: "{"})
	acc.Add(Fragment{Index: 0, ID: "late", Name: "product.search", Arguments: "}"})
	acc.Add(Fragment{Index: 0, ID: "ignored"})

	calls := acc.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, PendingToolCall{Index: 0, ID: "late", Name: "product.search", Arguments: "{}"}, calls[0])
}

func TestAccumulator_MultipleIndexes(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Fragment{Index: 1, ID: "b", Name: "second", Arguments: "{"})
	acc.Add(Fragment{Index: 0, ID: "a", Name: "first", Arguments: "{"})
	acc.Add(Fragment{Index: 1, Arguments: "}"})
	acc.Add(Fragment{Index: 0, Arguments: "}"})
	assert.Equal(t, 2, acc.Len())

	calls := acc.Finish()
	require.Len(t, calls, 2)
	assert.Equal(t, "second", calls[0].Name)
	assert.Equal(t, "first", calls[1].Name)
	for _, c := range calls {
		assert.Equal(t, "{}", c.Arguments)
	}
}

func TestAccumulator_FinishResets(t *testing.T) {
	acc := NewAccumulator()
	assert.Nil(t, acc.Finish())

	acc.Add(Fragment{Index: 0, ID: "c1", Name: "x.y", Arguments: strings.Repeat("a", 3)})
	require.Len(t, acc.Finish(), 1)
	assert.Zero(t, acc.Len())
	assert.Nil(t, acc.Finish())

	// The same index after a finish starts a new call.
	acc.Add(Fragment{Index: 0, ID: "c2", Name: "x.z", Arguments: "b"})
	calls := acc.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, PendingToolCall{Index: 0, ID: "c2", Name: "x.z", Arguments: "b"}, calls[0])
}
