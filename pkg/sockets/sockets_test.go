package sockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, gotHeader chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotHeader != nil {
			gotHeader <- r.Header.Get("Authorization")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConn_DialSendReceive(t *testing.T) {
	headers := make(chan string, 1)
	srv := echoServer(t, headers)

	received := make(chan string, 4)
	connected := make(chan struct{}, 1)
	c := New(
		WithHeader("Authorization", "Bearer abc"),
		OnConnected(func(Connection) { connected <- struct{}{} }),
		OnMessage(func(msg []byte, _ Connection) { received <- string(msg) }),
	)

	require.NoError(t, c.Dial(context.Background(), wsURL(srv)))
	assert.Equal(t, "Bearer abc", <-headers)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("OnConnected not called")
	}

	assert.Equal(t, "hello", <-received)
	require.NoError(t, c.Send([]byte("echo")))

	select {
	case msg := <-received:
		assert.Equal(t, "echo", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
	assert.ErrorIs(t, c.Send([]byte("late")), ErrClosed)
}

func TestConn_PingMessage(t *testing.T) {
	srv := echoServer(t, nil)

	received := make(chan string, 16)
	c := New(
		WithPingInterval(50*time.Millisecond),
		WithPingMsg([]byte("ping")),
		OnMessage(func(msg []byte, _ Connection) { received <- string(msg) }),
	)
	require.NoError(t, c.Dial(context.Background(), wsURL(srv)))
	defer c.Close()

	assert.Equal(t, "hello", <-received)
	select {
	case msg := <-received:
		assert.Equal(t, "ping", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no ping echoed")
	}
}

func TestConn_DialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New()
	assert.Error(t, c.Dial(context.Background(), wsURL(srv)))
	assert.ErrorIs(t, c.Send([]byte("x")), ErrClosed)
}

func TestConn_ServerGoesAway(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	c := New(OnError(func(err error) { errs <- err }))
	require.NoError(t, c.Dial(context.Background(), wsURL(srv)))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}
	<-c.Done()
}
