package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinofiles/kinosync/internal/core"
	"github.com/kinofiles/kinosync/internal/protocol"
	"github.com/kinofiles/kinosync/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// nodeServer is a minimal node: it accepts websocket clients, hands each
// connection to onConn and records received commands.
type nodeServer struct {
	*httptest.Server
	connections atomic.Int32
	commands    chan protocol.Command
	onConn      func(ws *websocket.Conn)
}

func newNodeServer(t *testing.T, onConn func(ws *websocket.Conn)) *nodeServer {
	t.Helper()
	ns := &nodeServer{commands: make(chan protocol.Command, 10), onConn: onConn}
	ns.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ns.connections.Add(1)
		if ns.onConn != nil {
			ns.onConn(ws)
			return
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if cmd, err := protocol.DecodeCommand(data); err == nil {
				ns.commands <- cmd
			}
		}
	}))
	t.Cleanup(ns.Close)
	return ns
}

func (ns *nodeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ns.URL, "http")
}

type frame struct {
	typ     core.FrameType
	payload string
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []frame
}

func (r *frameRecorder) handle(t core.FrameType, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{t, string(payload)})
}

func (r *frameRecorder) get() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]frame, len(r.frames))
	copy(out, r.frames)
	return out
}

func startClient(t *testing.T, opts Options) (*Client, context.CancelFunc, <-chan error) {
	t.Helper()
	if opts.InitialDelay == 0 {
		opts.InitialDelay = time.Millisecond
		opts.MaxDelay = 10 * time.Millisecond
	}
	c, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	t.Cleanup(cancel)
	return c, cancel, errc
}

func TestNewValidatesOptions(t *testing.T) {
	store := state.NewStore(state.StoreOptions{})
	h := func(core.FrameType, []byte) {}

	_, err := New(Options{Store: store, Handler: h})
	assert.Error(t, err)
	_, err = New(Options{URL: "ws://x", Handler: h})
	assert.Error(t, err)
	_, err = New(Options{URL: "ws://x", Store: store})
	assert.Error(t, err)
}

func TestClientDeliversFrames(t *testing.T) {
	ns := newNodeServer(t, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"state","data":{"known_nodes":["a"]}}`))
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	rec := &frameRecorder{}
	store := state.NewStore(state.StoreOptions{})
	_, _, _ = startClient(t, Options{URL: ns.wsURL(), Store: store, Handler: rec.handle})

	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, 2*time.Second, 5*time.Millisecond)
	frames := rec.get()
	assert.Equal(t, core.TextFrame, frames[0].typ)
	assert.Contains(t, frames[0].payload, "known_nodes")
	assert.Equal(t, core.BinaryFrame, frames[1].typ)
}

func TestClientInstallsSenderAndSendsCommands(t *testing.T) {
	ns := newNodeServer(t, nil)
	store := state.NewStore(state.StoreOptions{})
	c, _, _ := startClient(t, Options{URL: ns.wsURL(), Store: store, Handler: func(core.FrameType, []byte) {}})

	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
	sender := store.Transport()
	require.NotNil(t, sender)

	require.NoError(t, sender.Send(context.Background(), protocol.Move{SourcePath: "/a/x", TargetPath: "/b"}))

	select {
	case cmd := <-ns.commands:
		assert.Equal(t, protocol.Move{SourcePath: "/a/x", TargetPath: "/b"}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("node never received the command")
	}
}

func TestClientReconnectsAndClearsSender(t *testing.T) {
	var drop atomic.Bool
	drop.Store(true)
	ns := newNodeServer(t, func(ws *websocket.Conn) {
		if drop.Swap(false) {
			return // first connection is closed straight away
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	store := state.NewStore(state.StoreOptions{})
	_, _, _ = startClient(t, Options{URL: ns.wsURL(), Store: store, Handler: func(core.FrameType, []byte) {}})

	require.Eventually(t, func() bool {
		return ns.connections.Load() >= 2 && store.Transport() != nil
	}, 3*time.Second, 5*time.Millisecond)
}

func TestClientShutdownClearsSender(t *testing.T) {
	ns := newNodeServer(t, nil)
	store := state.NewStore(state.StoreOptions{})
	c, cancel, errc := startClient(t, Options{URL: ns.wsURL(), Store: store, Handler: func(core.FrameType, []byte) {}})

	<-c.Ready()
	sender := store.Transport()
	require.NotNil(t, sender)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Nil(t, store.Transport())
	assert.ErrorIs(t, sender.Send(context.Background(), protocol.CreateDir{Path: "/x"}), ErrClosed)
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	store := state.NewStore(state.StoreOptions{})
	_, _, errc := startClient(t, Options{
		URL:         url,
		Store:       store,
		Handler:     func(core.FrameType, []byte) {},
		MaxAttempts: 2,
	})

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.Nil(t, store.Transport())
}

func TestClientHandshakeStatusInError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	store := state.NewStore(state.StoreOptions{})
	_, _, errc := startClient(t, Options{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Store:       store,
		Handler:     func(core.FrameType, []byte) {},
		MaxAttempts: 1,
	})

	err := <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
