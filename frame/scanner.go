package frame

import (
	"bytes"
)

// Scanner reassembles response lines from partial chunks.
type Scanner struct {
	buf     []byte
	decoded int
}

// Feed appends a received chunk.
func (sc *Scanner) Feed(chunk []byte) {
	sc.buf = append(sc.buf, chunk...)
}

// Buffered returns the count of bytes not yet consumed.
func (sc *Scanner) Buffered() int {
	return len(sc.buf)
}

// Next returns the next complete line, including its CRLF. Stray "\n"
// separators before a line are skipped.
func (sc *Scanner) Next() (line []byte, ok bool) {
	for len(sc.buf) > 0 && (sc.buf[0] == '\n' || sc.buf[0] == '\r') && !bytes.HasPrefix(sc.buf, CRLF) {
		sc.buf = sc.buf[1:]
	}

	n := bytes.Index(sc.buf, CRLF)
	if n < 0 {
		return
	}

	line = bytes.Clone(sc.buf[:n+2])
	sc.buf = sc.buf[n+2:]
	ok = true

	return
}

// Responses decodes every complete response line currently buffered.
func (sc *Scanner) Responses() (datas []uint16, err error) {
	for {
		line, ok := sc.Next()
		if !ok {
			return
		}
		var data uint16
		data, err = DecodeResponse(line)
		if err != nil {
			err = &ErrDecode{Index: sc.decoded, Response: string(line), Err: err}
			return
		}
		sc.decoded++
		datas = append(datas, data)
	}
}

// Reset discards buffered bytes.
func (sc *Scanner) Reset() {
	sc.buf = nil
	sc.decoded = 0
}
