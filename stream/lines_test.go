package stream

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "splits on newline",
			input: "a\nb\n",
			want:  []string{"a\n", "b\n"},
		},
		{
			name:  "keeps unterminated tail",
			input: "a\nb",
			want:  []string{"a\n", "b"},
		},
		{
			name:  "drops overlong line",
			input: "short\n" + strings.Repeat("x", 64) + "\nafter\n",
			want:  []string{"short\n", "after\n"},
		},
		{
			name:  "drops overlong unterminated tail",
			input: "short\n" + strings.Repeat("x", 64),
			want:  []string{"short\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := newLineReader(strings.NewReader(tt.input), 16, slog.New(slog.DiscardHandler))

			var got []string
			for {
				line, err := lr.next()
				if line != "" {
					got = append(got, line)
				}
				if err != nil {
					require.ErrorIs(t, err, io.EOF)
					break
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
