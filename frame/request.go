package frame

import (
	"bytes"
	"strconv"
)

// Request is a decoded host request.
type Request struct {
	Op   byte   // OP_READ or OP_WRITE
	Addr uint16 // Register address.
	Data uint16 // Register data, for OP_WRITE.
}

// Bytes re-encodes the request.
func (req Request) Bytes() []byte {
	if req.Op == OP_WRITE {
		return EncodeWrite(req.Addr, req.Data)
	}
	return EncodeRead(req.Addr)
}

// ParseRequest decodes one request line. The trailing CRLF is optional, and
// surrounding whitespace is ignored.
func ParseRequest(line []byte) (req Request, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		err = ErrRequestEmpty
		return
	}

	req.Op = line[0]
	switch req.Op {
	case OP_READ:
		if len(line) != READ_LEN-2 {
			err = ErrRequestLength
			return
		}
		req.Addr, err = parseHex16(line[1:5])
	case OP_WRITE:
		if len(line) != WRITE_LEN-2 {
			err = ErrRequestLength
			return
		}
		req.Addr, err = parseHex16(line[1:5])
		if err == nil {
			req.Data, err = parseHex16(line[5:9])
		}
	default:
		err = ErrRequestOpcode
	}

	return
}

func parseHex16(word []byte) (value uint16, err error) {
	v, perr := strconv.ParseUint(string(word), 16, 16)
	if perr != nil {
		err = ErrRequestHex
		return
	}
	value = uint16(v)
	return
}
