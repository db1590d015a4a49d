package wire_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferRWC struct {
	*bytes.Buffer
}

func (bufferRWC) Close() error { return nil }

func TestParseFraming(t *testing.T) {
	f, err := wire.ParseFraming("")
	require.NoError(t, err)
	assert.Equal(t, wire.Newline, f)

	f, err = wire.ParseFraming("Length")
	require.NoError(t, err)
	assert.Equal(t, wire.LengthPrefix, f)

	_, err = wire.ParseFraming("xml")
	assert.Error(t, err)
}

func TestConn_RoundTrip(t *testing.T) {
	for _, framing := range []wire.Framing{wire.Newline, wire.LengthPrefix} {
		t.Run(string(framing), func(t *testing.T) {
			buf := bufferRWC{&bytes.Buffer{}}
			conn := wire.NewConn(buf, framing)

			msgs := []string{`{"id":1}`, `{"id":2,"method":"ping"}`, `{}`}
			for _, m := range msgs {
				require.NoError(t, conn.WriteMessage([]byte(m)))
			}

			for _, want := range msgs {
				got, err := conn.ReadMessage()
				require.NoError(t, err)
				assert.Equal(t, want, string(got))
			}

			_, err := conn.ReadMessage()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestConn_NewlineSkipsBlankLines(t *testing.T) {
	buf := bufferRWC{bytes.NewBufferString("\n\r\n{\"id\":1}\r\n\n{\"id\":2}")}
	conn := wire.NewConn(buf, wire.Newline)

	first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(first))

	// A final message without a trailing newline is still delivered.
	second, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, string(second))
}

func TestConn_NewlineRejectsEmbeddedNewline(t *testing.T) {
	conn := wire.NewConn(bufferRWC{&bytes.Buffer{}}, wire.Newline)
	err := conn.WriteMessage([]byte("{\n}"))
	assert.ErrorIs(t, err, wire.ErrRawNewline)
	assert.True(t, wire.IsUnframeable(err))
}

func TestConn_WriteTooLargeWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := wire.NewConn(bufferRWC{buf}, wire.LengthPrefix)

	err := conn.WriteMessage(make([]byte, wire.MaxMessageSize+1))
	assert.ErrorIs(t, err, wire.ErrMessageTooLarge)
	assert.True(t, wire.IsUnframeable(err))
	assert.Zero(t, buf.Len())
	assert.False(t, wire.IsUnframeable(io.ErrClosedPipe))
}

func TestConn_LongLine(t *testing.T) {
	payload := `{"blob":"` + strings.Repeat("x", 200*1024) + `"}`
	buf := bufferRWC{bytes.NewBufferString(payload + "\n")}
	conn := wire.NewConn(buf, wire.Newline)

	got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestConn_LengthPrefixTooLarge(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], wire.MaxMessageSize+1)
	conn := wire.NewConn(bufferRWC{bytes.NewBuffer(header[:])}, wire.LengthPrefix)

	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, wire.ErrMessageTooLarge)
}

func TestConn_LengthPrefixTruncated(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 10)
	conn := wire.NewConn(bufferRWC{bytes.NewBuffer(append(header[:], 'a', 'b'))}, wire.LengthPrefix)

	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConn_ConcurrentWritesDoNotInterleave(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := wire.NewConn(client, wire.LengthPrefix)
	reader := wire.NewConn(server, wire.LengthPrefix)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			msg := bytes.Repeat([]byte{byte('a' + w)}, 512)
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, writer.WriteMessage(msg))
			}
		}(w)
	}

	for i := 0; i < writers*perWriter; i++ {
		msg, err := reader.ReadMessage()
		require.NoError(t, err)
		require.Len(t, msg, 512)
		for _, b := range msg {
			require.Equal(t, msg[0], b, "frame %d interleaved", i)
		}
	}
	wg.Wait()
}
