// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package frame

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ezrec/serialbridge/internal"
)

const (
	OP_READ     = 'R' // Read request opcode.
	OP_WRITE    = 'W' // Write request opcode.
	OP_RESPONSE = 'D' // Read response preamble.

	READ_LEN     = 7  // "R" + 4 hex + CRLF
	WRITE_LEN    = 11 // "W" + 8 hex + CRLF
	RESPONSE_LEN = 7  // "D" + 4 hex + CRLF

	// The device's receive FIFO wants a spare "\n" every 32 read packets.
	PACKETS_PER_BREAK = 32

	DEFAULT_CHUNK_SIZE = 256
)

// CRLF terminates every request and response.
var CRLF = []byte("\r\n")

// EncodeWrite returns the request storing data at addr.
func EncodeWrite(addr, data uint16) []byte {
	return fmt.Appendf(nil, "W%04X%04X\r\n", addr, data)
}

// EncodeRead returns the request reading addr.
func EncodeRead(addr uint16) []byte {
	return fmt.Appendf(nil, "R%04X\r\n", addr)
}

// EncodeWrites returns all write requests as one buffer. The device sends no
// write responses, so writes need no chunking.
func EncodeWrites(addrs []uint16, datas []uint16) (out []byte, err error) {
	if len(addrs) != len(datas) {
		err = ErrRequestPairing
		return
	}

	for n, addr := range addrs {
		out = append(out, EncodeWrite(addr, datas[n])...)
	}

	return
}

// EncodeReads splits the read requests for addrs into chunks of at most
// chunk requests, each chunk as one buffer with a "\n" after every 32
// packets. The host should collect a chunk's responses before sending the
// next, since the device answers immediately and the host input buffer is
// shallow.
func EncodeReads(addrs []uint16, chunk int) (out [][]byte) {
	if chunk < 1 {
		chunk = DEFAULT_CHUNK_SIZE
	}

	for addrChunk := range internal.Chunks(addrs, chunk) {
		var buf []byte
		for n, addr := range addrChunk {
			if n > 0 && n%PACKETS_PER_BREAK == 0 {
				buf = append(buf, '\n')
			}
			buf = append(buf, EncodeRead(addr)...)
		}
		out = append(out, buf)
	}

	return
}

// DecodeResponse decodes a single read response.
func DecodeResponse(response []byte) (data uint16, err error) {
	if len(response) != RESPONSE_LEN {
		err = ErrResponseLength
		return
	}

	if response[0] != OP_RESPONSE {
		err = ErrResponsePreamble
		return
	}

	for _, c := range response[1:5] {
		if !isUpperHex(c) {
			err = ErrResponseData
			return
		}
	}

	if !bytes.Equal(response[5:], CRLF) {
		err = ErrResponseEOL
		return
	}

	v, _ := strconv.ParseUint(string(response[1:5]), 16, 16)
	data = uint16(v)

	return
}

// EncodeResponse returns the device's answer to a read of data.
func EncodeResponse(data uint16) []byte {
	return fmt.Appendf(nil, "D%04X\r\n", data)
}

func isUpperHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}
