package script

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fake is an in-memory Caller.
type fake struct {
	mu     sync.Mutex
	regs   map[uint16]uint16
	sent   []string
	chunks []string
	err    error
}

func newFake() *fake {
	return &fake{regs: map[uint16]uint16{}}
}

func (fk *fake) Read(ctx context.Context) ([]byte, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	if fk.err != nil {
		return nil, fk.err
	}
	if len(fk.chunks) == 0 {
		return nil, errors.New("nothing to read")
	}
	chunk := fk.chunks[0]
	fk.chunks = fk.chunks[1:]
	return []byte(chunk), nil
}

func (fk *fake) Write(ctx context.Context, p []byte) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	fk.sent = append(fk.sent, string(p))
	return fk.err
}

func (fk *fake) ReadRegisters(ctx context.Context, addrs []uint16) (datas []uint16, err error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	for _, addr := range addrs {
		datas = append(datas, fk.regs[addr])
	}
	return
}

func (fk *fake) WriteRegisters(ctx context.Context, addrs []uint16, datas []uint16) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()
	for n, addr := range addrs {
		fk.regs[addr] = datas[n]
	}
	return nil
}

func TestExecCapture(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	core, logs := observer.New(zap.InfoLevel)
	fk := newFake()
	fk.chunks = []string{"D0001\r\n"}
	rt := &Runtime{Caller: fk, Logger: zap.New(core)}

	src := `
def capture(foo):
    print("capture called with", foo)
    write_serial("W00000001\r\n")
    write_serial(b"W00010001\r\n")
    write_serial("R0000\r\n")
    return read_serial()

print("loaded")
`
	result, err := rt.Exec(context.Background(), "main.star", src, "hello")
	require.NoError(err)
	assert.Equal(starlark.String("D0001\r\n"), result)
	assert.Equal([]string{"W00000001\r\n", "W00010001\r\n", "R0000\r\n"}, fk.sent)

	var msgs []string
	for _, entry := range logs.All() {
		msgs = append(msgs, entry.Message)
	}
	assert.Equal([]string{"loaded", "capture called with hello"}, msgs)
}

func TestExecRegisters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fk := newFake()
	rt := New(fk)

	src := `
write(1, 0x1234)
write([2, 3], [5, 6])
def capture():
    return [read(1), read([2, 3])]
`
	result, err := rt.Exec(context.Background(), "regs.star", src, "")
	require.NoError(err)
	assert.Equal("[4660, [5, 6]]", result.String())
	assert.Equal(uint16(6), fk.regs[3])
}

func TestExecNoCapture(t *testing.T) {
	assert := assert.New(t)

	result, err := New(newFake()).Exec(context.Background(), "plain.star", "x = 1\n", "")
	assert.NoError(err)
	assert.Equal(starlark.None, result)
}

func TestExecErrors(t *testing.T) {
	assert := assert.New(t)

	table := [...]struct {
		src  string
		want any
	}{
		{"write(0x10000, 1)\n", new(*ErrRange)},
		{"write(1, -1)\n", new(*ErrRange)},
		{"write([1, 2], [3])\n", ErrPairing},
		{"write_serial(1)\n", new(*ErrType)},
	}

	for n, entry := range table {
		_, err := New(newFake()).Exec(context.Background(), "bad.star", entry.src, "")
		switch want := entry.want.(type) {
		case error:
			assert.ErrorIs(err, want, "%d", n)
		default:
			assert.ErrorAs(err, want, "%d", n)
		}
	}

	_, err := New(newFake()).Exec(context.Background(), "syntax.star", "def (\n", "")
	assert.Error(err)

	fk := newFake()
	fk.err = errors.New("unplugged")
	_, err = New(fk).Exec(context.Background(), "io.star", "read_serial()\n", "")
	assert.ErrorContains(err, "unplugged")

	_, err = (&Runtime{}).Exec(context.Background(), "none.star", "", "")
	assert.ErrorIs(err, ErrCallerMissing)
}

func TestExecCancel(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	src := `
def capture():
    n = 0
    for i in range(1000000000):
        n += i
    return n
`
	_, err := New(newFake()).Exec(ctx, "spin.star", src, "")
	assert.ErrorIs(err, context.DeadlineExceeded)
}
