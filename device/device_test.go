package device

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/serialbridge/frame"
)

func TestDeviceWriteRead(t *testing.T) {
	assert := assert.New(t)

	dev := New(16)

	n, err := dev.Write([]byte("W00010002\r\nW0002BEEF\r\n"))
	assert.NoError(err)
	assert.Equal(22, n)
	assert.Equal(uint16(2), dev.Peek(1))
	assert.Equal(uint16(0xbeef), dev.Peek(2))

	_, err = dev.Write([]byte("R0001\r\nR0002\r\n"))
	assert.NoError(err)

	buf := make([]byte, 64)
	n, err = dev.Read(buf)
	assert.NoError(err)
	assert.Equal("D0002\r\nDBEEF\r\n", string(buf[:n]))
}

func TestDevicePartialRequest(t *testing.T) {
	assert := assert.New(t)

	dev := New(16)
	dev.Poke(3, 0x1234)

	_, err := dev.Write([]byte("R00"))
	assert.NoError(err)
	_, err = dev.Write([]byte("03\r"))
	assert.NoError(err)
	_, err = dev.Write([]byte("\n\n"))
	assert.NoError(err)

	buf := make([]byte, 64)
	n, err := dev.Read(buf)
	assert.NoError(err)
	assert.Equal("D1234\r\n", string(buf[:n]))

	assert.Equal([][]byte{[]byte("R00"), []byte("03\r"), []byte("\n\n")}, dev.Writes())
}

func TestDeviceDropsBadRequests(t *testing.T) {
	assert := assert.New(t)

	dev := New(4)
	_, err := dev.Write([]byte("garbage\r\nW00100001\r\nR0010\r\nW00020007\r\n"))
	assert.NoError(err)

	assert.Equal(uint16(7), dev.Peek(2))
	assert.Equal(uint16(0), dev.Peek(0x10))
	dev.Poke(0x10, 5)
	assert.Equal(uint16(0), dev.Peek(0x10))

	dev.Inject([]byte("X"))
	buf := make([]byte, 8)
	n, err := dev.Read(buf)
	assert.NoError(err)
	assert.Equal("X", string(buf[:n]))
}

func TestDeviceChunkSize(t *testing.T) {
	assert := assert.New(t)

	dev := New(16)
	dev.ChunkSize = 3
	_, err := dev.Write(frame.EncodeRead(0))
	assert.NoError(err)

	buf := make([]byte, 64)
	n, err := dev.Read(buf)
	assert.NoError(err)
	assert.Equal("D00", string(buf[:n]))
	n, err = dev.Read(buf)
	assert.NoError(err)
	assert.Equal("00\r", string(buf[:n]))
	n, err = dev.Read(buf)
	assert.NoError(err)
	assert.Equal("\n", string(buf[:n]))
}

func TestDeviceClose(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dev := New(0)
	assert.Equal(DEFAULT_CAPACITY, dev.Capacity)

	result := make(chan error, 1)
	go func() {
		_, err := dev.Read(make([]byte, 8))
		result <- err
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(dev.Close())

	select {
	case err := <-result:
		assert.ErrorIs(err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on Close")
	}

	_, err := dev.Write([]byte("R0000\r\n"))
	assert.ErrorIs(err, io.ErrClosedPipe)

	port, err := dev.Opener()(context.Background())
	assert.NoError(err)
	assert.Same(dev, port)
	_, err = dev.Write([]byte("W00000001\r\n"))
	assert.NoError(err)
}
