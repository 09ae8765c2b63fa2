package signaling

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

// wsPair returns the server side of a websocket connection and the client
// side dialed against it.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	clientSide, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	select {
	case conn := <-serverSide:
		t.Cleanup(func() { conn.Close() })
		return conn, clientSide
	case <-time.After(5 * time.Second):
		t.Fatal("server side never upgraded")
		return nil, nil
	}
}

func TestClientSendClosesWhenBufferFull(t *testing.T) {
	serverConn, _ := wsPair(t)
	cfg := DefaultClientConfig()
	cfg.SendBuffer = 1
	c := NewClient(NewHub(discardLogger()), serverConn, cfg, discardLogger())

	assert.True(t, c.Send(&Message{Type: "one"}))
	assert.False(t, c.Send(&Message{Type: "two"}))

	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not closed")
	}
	assert.False(t, c.Send(&Message{Type: "three"}))
}

func TestClientRoundTrip(t *testing.T) {
	serverConn, clientConn := wsPair(t)
	hub := NewHub(discardLogger())
	c := NewClient(hub, serverConn, DefaultClientConfig(), discardLogger())
	c.Start()

	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Message
	require.NoError(t, clientConn.ReadJSON(&hello))
	assert.Equal(t, MessageTypeConnected, hello.Type)
	assert.Equal(t, c.ID(), decode[ConnectedPayload](t, &hello).UserID)

	// undecodable frame fails alone
	require.NoError(t, clientConn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var errMsg Message
	require.NoError(t, clientConn.ReadJSON(&errMsg))
	assert.Equal(t, MessageTypeError, errMsg.Type)

	require.NoError(t, clientConn.WriteJSON(mustMessage(MessageTypeJoinRoom, JoinRoomPayload{RoomID: "r", UserName: "Solo"})))
	var existing Message
	require.NoError(t, clientConn.ReadJSON(&existing))
	assert.Equal(t, MessageTypeExistingUsers, existing.Type)
	assert.Equal(t, 1, hub.Stats().Users)

	clientConn.Close()
	require.Eventually(t, func() bool { return hub.Stats() == Stats{} }, 5*time.Second, 10*time.Millisecond)
}
