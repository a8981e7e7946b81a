package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSPair starts an httptest server whose handler hands the wrapped server side
// of each connection to connCh.
func newWSPair(t *testing.T, opts Options) (*websocket.Conn, *WebSocketConn) {
	t.Helper()
	connCh := make(chan *WebSocketConn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- NewWebSocketConn(ws, opts)
	}))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-connCh:
		return client, c
	case <-time.After(2 * time.Second):
		t.Fatal("server side of websocket not ready")
	}
	return nil, nil
}

func TestWebSocketConn_ReadAndSend(t *testing.T) {
	client, conn := newWSPair(t, Options{})
	assert.NotEmpty(t, conn.ID())
	assert.NotNil(t, conn.RemoteAddr())
	assert.True(t, conn.IsOpen())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"register","nodeId":"a"}`)))
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"register","nodeId":"a"}`, string(data))

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"ping"}`)))
	data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(data))

	require.True(t, conn.Send([]byte(`{"type":"peers","peers":[]}`)))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, got, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, `{"type":"peers","peers":[]}`, string(got))
}

func TestWebSocketConn_PeerCloseEndsRead(t *testing.T) {
	client, conn := newWSPair(t, Options{})

	require.NoError(t, client.Close())
	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.False(t, conn.IsOpen())
	assert.False(t, conn.Send([]byte("late")))
	assert.NoError(t, conn.Close())
}

func TestWebSocketConn_LocalCloseSendsCloseFrame(t *testing.T) {
	client, conn := newWSPair(t, Options{})

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsOpen())

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	_, err = conn.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWebSocketConn_ReadLimit(t *testing.T) {
	client, conn := newWSPair(t, Options{MaxMessageBytes: 16})

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.False(t, conn.IsOpen())
}
