package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatagramConn_ReadAndSend(t *testing.T) {
	server, client := net.Pipe()
	conn := NewDatagramConn(server, Options{})
	defer conn.Close()

	go func() {
		_, _ = client.Write([]byte(`{"type":"register","nodeId":"a"}`))
	}()
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"register","nodeId":"a"}`, string(data))

	require.True(t, conn.Send([]byte(`{"type":"ping"}`)))
	buf := make([]byte, 64)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(buf[:n]))
}

func TestDatagramConn_PeerCloseEndsRead(t *testing.T) {
	server, client := net.Pipe()
	conn := NewDatagramConn(server, Options{})

	require.NoError(t, client.Close())
	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
	assert.False(t, conn.IsOpen())
	assert.False(t, conn.Send([]byte("late")))
}

func TestDatagramConn_LocalClose(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewDatagramConn(server, Options{})

	require.NoError(t, conn.Close())
	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcceptDTLS_RejectsPlainConn(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn, err := AcceptDTLS(context.Background(), server, Options{})
	assert.Nil(t, conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a DTLS connection")
}
