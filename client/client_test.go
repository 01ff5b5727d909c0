package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/serialbridge/device"
	"github.com/ezrec/serialbridge/gateway"
	"github.com/ezrec/serialbridge/message"
)

// direct serves the endpoints straight from a simulated device.
func direct(t *testing.T, dev *device.Device) *Client {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /read", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(gateway.HEADER_REQUEST_ID))
		buf := make([]byte, 4096)
		n, err := dev.Read(buf)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		_, _ = w.Write(buf[:n])
	})
	mux.HandleFunc("POST /write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, err := dev.Write(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return New(server.Client(), server.URL)
}

func TestClientRegisters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dev := device.New(512)
	dev.ChunkSize = 5 // Responses arrive split across reads.
	cl := direct(t, dev)
	cl.ChunkSize = 40
	ctx := context.Background()

	require.NoError(cl.WriteRegister(ctx, 3, 0x1234))
	assert.Equal(uint16(0x1234), dev.Peek(3))

	data, err := cl.ReadRegister(ctx, 3)
	require.NoError(err)
	assert.Equal(uint16(0x1234), data)

	addrs := make([]uint16, 100)
	datas := make([]uint16, 100)
	for n := range addrs {
		addrs[n] = uint16(n * 5)
		datas[n] = uint16(n * 7)
	}
	require.NoError(cl.WriteRegisters(ctx, addrs, datas))

	got, err := cl.ReadRegisters(ctx, addrs)
	require.NoError(err)
	assert.Equal(datas, got)

	// One single read, then 100 reads in batches of 40.
	reads := 0
	for _, w := range dev.Writes() {
		if len(w) > 0 && w[0] == 'R' {
			reads++
		}
	}
	assert.Equal(4, reads)
}

func TestClientDecodeError(t *testing.T) {
	assert := assert.New(t)

	dev := device.New(16)
	cl := direct(t, dev)

	dev.Inject([]byte("Dzzzz\r\n"))
	_, err := cl.ReadRegister(context.Background(), 0)
	assert.Error(err)
}

func TestClientPairing(t *testing.T) {
	assert := assert.New(t)

	cl := direct(t, device.New(16))
	err := cl.WriteRegisters(context.Background(), []uint16{1, 2}, []uint16{1})
	assert.Error(err)
}

func TestClientStatus(t *testing.T) {
	assert := assert.New(t)

	table := [...]struct {
		code  int
		check func(error) bool
	}{
		{http.StatusConflict, func(err error) bool { return assert.ErrorIs(err, gateway.ErrProtocolViolation) }},
		{http.StatusGatewayTimeout, func(err error) bool { return assert.ErrorIs(err, gateway.ErrTimeout) }},
		{http.StatusBadGateway, func(err error) bool {
			var remote *gateway.RemoteError
			return assert.ErrorAs(err, &remote) && assert.Equal("boom", remote.Message)
		}},
		{http.StatusTeapot, func(err error) bool {
			var status *StatusError
			return assert.ErrorAs(err, &status) && assert.Equal(http.StatusTeapot, status.Code)
		}},
	}

	for _, entry := range table {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", entry.code)
		}))

		cl := New(server.Client(), server.URL)
		_, err := cl.Read(context.Background())
		entry.check(err)
		entry.check(cl.Write(context.Background(), []byte("x")))

		server.Close()
	}
}

func TestClientBaseURL(t *testing.T) {
	assert := assert.New(t)

	cl := New(nil, "://bad")
	_, err := cl.Read(context.Background())
	assert.ErrorIs(err, ErrBaseURL)
}

func TestClientMethods(t *testing.T) {
	assert := assert.New(t)

	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
	}))
	defer server.Close()

	cl := New(server.Client(), server.URL+"/bridge")
	_, _ = cl.Read(context.Background())
	_ = cl.Write(context.Background(), nil)
	assert.Equal([]string{
		message.KindRead.Method() + " /bridge/read",
		message.KindWrite.Method() + " /bridge/write",
	}, seen)
}
