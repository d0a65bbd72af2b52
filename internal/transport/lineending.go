package transport

import (
	"bufio"
	"bytes"
	"io"
	"runtime"
)

// nativeEOL is the line terminator written for text mode transfers.
var nativeEOL = func() []byte {
	if runtime.GOOS == "windows" {
		return []byte("\r\n")
	}
	return []byte("\n")
}()

// lineEndingReader rewrites CRLF and LF terminated lines to eol.
type lineEndingReader struct {
	r       *bufio.Reader
	eol     []byte
	pending []byte
	err     error
}

func newLineEndingReader(r io.Reader) *lineEndingReader {
	return &lineEndingReader{r: bufio.NewReader(r), eol: nativeEOL}
}

func (l *lineEndingReader) Read(p []byte) (int, error) {
	if len(l.pending) == 0 {
		if l.err != nil {
			return 0, l.err
		}
		line, err := l.r.ReadBytes('\n')
		l.err = err
		if bytes.HasSuffix(line, []byte("\n")) {
			line = bytes.TrimSuffix(line[:len(line)-1], []byte("\r"))
			line = append(line, l.eol...)
		}
		if len(line) == 0 {
			return 0, l.err
		}
		l.pending = line
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}
