package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helio-dev/helio/internal/protocol"
)

// newTestConn dials a throwaway websocket endpoint so the wsConn under test
// wraps a real connection.
func newTestConn(t *testing.T) *wsConn {
	t.Helper()
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-done
		_ = c.Close()
	}))
	t.Cleanup(func() { close(done); srv.Close() })

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return &wsConn{id: "conn", conn: conn, send: make(chan []byte, sendBufferSize)}
}

func TestTrySendAfterClose(t *testing.T) {
	c := newTestConn(t)
	require.NoError(t, c.TrySend([]byte("before")))

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.TrySend([]byte("after")), ErrClosed)
}

// A tooling session's drain goroutines keep emitting the subprocess's final
// output while the read pump tears the connection down; a late enqueue must
// be rejected, never panic.
func TestEmitRacingCloseDoesNotPanic(t *testing.T) {
	c := newTestConn(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Emit(protocol.TypeLspDebug, protocol.LspDebug{Message: "STDERR: terminated"})
			}
		}()
	}
	c.Close()
	wg.Wait()

	assert.ErrorIs(t, c.TrySend([]byte("late")), ErrClosed)
}

func TestTrySendReportsBackpressure(t *testing.T) {
	c := newTestConn(t)
	t.Cleanup(c.Close)

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.TrySend([]byte("fill")))
	}
	assert.ErrorIs(t, c.TrySend([]byte("overflow")), ErrBackpressure)
}
