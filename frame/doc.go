// Package frame encodes and decodes the ASCII register protocol spoken by the
// serial device.
//
// A write request is "W" + 4 hex digit address + 4 hex digit data + CRLF and
// has no response. A read request is "R" + 4 hex digit address + CRLF and is
// answered by "D" + 4 hex digit data + CRLF. Read responses have the same
// length as read requests.
package frame
