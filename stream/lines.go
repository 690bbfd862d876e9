package stream

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
)

// maxLineSize bounds one upstream line. Longer lines are dropped.
const maxLineSize = 1 << 20

// lineReader splits upstream into newline-terminated lines without holding
// more than its buffer size of a single line in memory.
type lineReader struct {
	br     *bufio.Reader
	logger *slog.Logger
}

func newLineReader(r io.Reader, size int, logger *slog.Logger) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, size), logger: logger}
}

// next returns the next line including its newline. The final line may lack
// one, in which case it is returned together with io.EOF.
func (lr *lineReader) next() (string, error) {
	for {
		line, err := lr.br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return string(line), err
		}
		lr.logger.Warn("dropping oversized stream line", "limit", lr.br.Size())
		if err := lr.skipLine(); err != nil {
			return "", err
		}
	}
}

// skipLine discards input up to and including the next newline.
func (lr *lineReader) skipLine() error {
	for {
		_, err := lr.br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
