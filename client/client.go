// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/frame"
	"github.com/ezrec/serialbridge/gateway"
	"github.com/ezrec/serialbridge/message"
)

// Client issues blocking reads and writes against the gateway endpoints.
type Client struct {
	HTTP      *http.Client // If nil, http.DefaultClient is used.
	BaseURL   string
	ChunkSize int         // Read requests per batch; see frame.EncodeReads.
	Logger    *zap.Logger // If nil, zap.L() is used.

	mu      sync.Mutex
	scanner frame.Scanner // Response bytes not yet consumed.
}

// New creates a client for the gateway at baseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{HTTP: httpClient, BaseURL: baseURL}
}

func (cl *Client) logger() *zap.Logger {
	if cl.Logger != nil {
		return cl.Logger
	}
	return zap.L()
}

func (cl *Client) do(ctx context.Context, kind message.Kind, payload []byte) (data []byte, err error) {
	target, err := url.JoinPath(cl.BaseURL, kind.Path())
	if err != nil {
		err = ErrBaseURL
		return
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, kind.Method(), target, body)
	if err != nil {
		return
	}

	id := message.NewID()
	req.Header.Set(gateway.HEADER_REQUEST_ID, string(id))
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	httpClient := cl.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return
	}

	cl.logger().Debug("call",
		zap.Stringer("kind", kind),
		zap.String("id", string(id)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)))

	if resp.StatusCode == http.StatusOK {
		return
	}

	err = errorOf(resp.StatusCode, strings.TrimSpace(string(data)))
	data = nil

	return
}

// errorOf maps a gateway status back to its error.
func errorOf(code int, body string) error {
	switch code {
	case http.StatusConflict:
		return gateway.ErrProtocolViolation
	case http.StatusGatewayTimeout:
		return gateway.ErrTimeout
	case http.StatusBadGateway:
		return &gateway.RemoteError{Message: body}
	case http.StatusBadRequest:
		return gateway.ErrKindInvalid
	case gateway.StatusClientClosedRequest:
		return context.Canceled
	}
	return &StatusError{Code: code, Body: body}
}

// Read blocks until the device sends a chunk of bytes.
func (cl *Client) Read(ctx context.Context) (data []byte, err error) {
	return cl.do(ctx, message.KindRead, nil)
}

// Write blocks until the device has accepted all of p.
func (cl *Client) Write(ctx context.Context, p []byte) (err error) {
	if p == nil {
		p = []byte{}
	}
	_, err = cl.do(ctx, message.KindWrite, p)
	return
}

// WriteRegister stores data at addr.
func (cl *Client) WriteRegister(ctx context.Context, addr uint16, data uint16) (err error) {
	return cl.Write(ctx, frame.EncodeWrite(addr, data))
}

// WriteRegisters stores datas at addrs, pairwise.
func (cl *Client) WriteRegisters(ctx context.Context, addrs []uint16, datas []uint16) (err error) {
	buf, err := frame.EncodeWrites(addrs, datas)
	if err != nil {
		return
	}
	if len(buf) == 0 {
		return
	}
	return cl.Write(ctx, buf)
}

// ReadRegister returns the value at addr.
func (cl *Client) ReadRegister(ctx context.Context, addr uint16) (data uint16, err error) {
	datas, err := cl.ReadRegisters(ctx, []uint16{addr})
	if err != nil {
		return
	}
	data = datas[0]
	return
}

// ReadRegisters returns the values at addrs. Requests go out in batches, and
// each batch's responses are collected before the next is sent.
func (cl *Client) ReadRegisters(ctx context.Context, addrs []uint16) (datas []uint16, err error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for _, batch := range frame.EncodeReads(addrs, cl.ChunkSize) {
		want := len(datas) + bytes.Count(batch, frame.CRLF)

		err = cl.Write(ctx, batch)
		if err != nil {
			return
		}

		for len(datas) < want {
			var got []uint16
			got, err = cl.scanner.Responses()
			datas = append(datas, got...)
			if err != nil {
				cl.scanner.Reset()
				return
			}
			if len(datas) >= want {
				break
			}

			var chunk []byte
			chunk, err = cl.Read(ctx)
			if err != nil {
				return
			}
			cl.scanner.Feed(chunk)
		}
	}

	if len(datas) != len(addrs) {
		err = ErrResponseCount
	}

	return
}
