package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func FuzzParseRequest(f *testing.F) {
	for _, seed := range []string{"W00010002\r\n", "R0000\r\n", "  rbeef", "", "Q0000\r\n", "W0001000z\r\n"} {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, line []byte) {
		assert := assert.New(t)

		req, err := ParseRequest(line)
		if err != nil {
			return
		}

		again, err := ParseRequest(req.Bytes())
		assert.NoError(err)
		assert.Equal(req, again)
	})
}

func FuzzDecodeResponse(f *testing.F) {
	for _, seed := range []string{"D0002\r\n", "DFFFF\r\n", "D00a2\r\n", "X0002\r\n", "D0002\n\r", ""} {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, response []byte) {
		assert := assert.New(t)

		data, err := DecodeResponse(response)
		if err != nil {
			return
		}

		assert.Equal(response, EncodeResponse(data))
	})
}

func FuzzScanner(f *testing.F) {
	f.Add([]byte("D0002\r\nD0003\r\n"), uint8(3))
	f.Add([]byte("\n\nD00"), uint8(1))
	f.Add([]byte("Dzzzz\r\n\r\n"), uint8(0))

	f.Fuzz(func(t *testing.T, stream []byte, split uint8) {
		assert := assert.New(t)

		step := int(split) + 1
		sc := &Scanner{}
		for len(stream) > 0 {
			n := min(step, len(stream))
			sc.Feed(stream[:n])
			stream = stream[n:]

			datas, err := sc.Responses()
			for _, data := range datas {
				assert.Len(EncodeResponse(data), RESPONSE_LEN)
			}
			if err != nil {
				var decodeErr *ErrDecode
				assert.ErrorAs(err, &decodeErr)
			}
		}
	})
}
