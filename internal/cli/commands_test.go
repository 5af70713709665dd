package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/core"
	"github.com/kinofiles/kinosync/internal/models"
	"github.com/kinofiles/kinosync/internal/protocol"
)

// executeCommand runs the CLI with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// writeTestConfig writes a config pointing at baseURL with a private session
// directory and a short refresh delay.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	cfg.BaseURL = baseURL
	cfg.SessionDir = filepath.Join(dir, "sessions")
	cfg.RefreshDelay = 10 * time.Millisecond
	path := filepath.Join(dir, "config")
	require.NoError(t, config.Save(cfg, path))
	return path
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeNode serves GET /files and the /ws push channel.
type fakeNode struct {
	*httptest.Server
	files     atomic.Value // []models.FileEntry
	listCalls atomic.Int32
	commands  chan protocol.Command
	push      []protocol.Event
}

func newFakeNode(t *testing.T, files []models.FileEntry, push ...protocol.Event) *fakeNode {
	t.Helper()
	n := &fakeNode{commands: make(chan protocol.Command, 10), push: push}
	n.files.Store(files)

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		n.listCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ListFiles": n.files.Load().([]models.FileEntry),
		})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for _, ev := range n.push {
			payload, err := protocol.EncodeEvent(ev)
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if cmd, err := protocol.DecodeCommand(data); err == nil {
				n.commands <- cmd
			}
		}
	})

	n.Server = httptest.NewServer(mux)
	t.Cleanup(n.Close)
	return n
}

func testListing() []models.FileEntry {
	return []models.FileEntry{
		{Name: "/docs", Dir: true},
		{Name: "/docs/a.txt", Size: 12},
		{Name: "/inbox", Dir: true},
		{Name: "/inbox/report.pdf", Size: 2048},
	}
}

func TestLsPrintsListing(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	out, err := executeCommand(t, "--config", path, "ls")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "d"))
	assert.Contains(t, lines[0], "/docs")
	assert.Contains(t, out, "2048")
	assert.Contains(t, out, "/inbox/report.pdf")
}

func TestLsFallsBackToSession(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	_, err := executeCommand(t, "--config", path, "ls")
	require.NoError(t, err)

	node.Close()

	out, err := executeCommand(t, "--config", path, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "/inbox/report.pdf")
}

func TestLsFailsWithoutSession(t *testing.T) {
	node := newFakeNode(t, nil)
	path := writeTestConfig(t, node.URL)
	node.Close()

	_, err := executeCommand(t, "--config", path, "ls")
	require.Error(t, err)
}

func TestMkdirSendsCreateDir(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	out, err := executeCommand(t, "--config", path, "--yes", "mkdir", "/docs", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "/docs/notes")

	select {
	case cmd := <-node.commands:
		assert.Equal(t, protocol.CreateDir{Path: "/docs/notes"}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("node did not receive CreateDir")
	}

	// The delayed refresh ran before the command returned.
	assert.GreaterOrEqual(t, node.listCalls.Load(), int32(1))
}

func TestMkdirEmptyNameRejected(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	_, err := executeCommand(t, "--config", path, "--yes", "mkdir", "/docs", "")
	require.Error(t, err)
	assert.True(t, core.IsPrecondition(err, core.ReasonEmptyFolderName))
	assert.Empty(t, node.commands)
}

func TestMkdirWithoutTerminalIsCancelled(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	saved := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = saved })

	out, err := executeCommand(t, "--config", path, "mkdir", "/docs", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")
	assert.Empty(t, node.commands)
}

func TestMvSendsMove(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	_, err := executeCommand(t, "--config", path, "--yes", "mv", "/inbox/report.pdf", "/docs")
	require.NoError(t, err)

	select {
	case cmd := <-node.commands:
		assert.Equal(t, protocol.Move{SourcePath: "/inbox/report.pdf", TargetPath: "/docs"}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("node did not receive Move")
	}
}

func TestMvPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		source string
		dest   string
		reason core.Reason
	}{
		{"in place", "/inbox/report.pdf", "/inbox", core.ReasonInPlaceMove},
		{"destination is a file", "/docs/a.txt", "/inbox/report.pdf", core.ReasonDestinationNotDirectory},
		{"destination unknown", "/docs/a.txt", "/nowhere", core.ReasonDestinationNotDirectory},
		{"same path", "/docs", "/docs", core.ReasonSamePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newFakeNode(t, testListing())
			path := writeTestConfig(t, node.URL)

			_, err := executeCommand(t, "--config", path, "--yes", "mv", tt.source, tt.dest)
			require.Error(t, err)
			assert.True(t, core.IsPrecondition(err, tt.reason), "got %v", err)
			assert.Empty(t, node.commands)
		})
	}
}

func TestNodesPrintsRoster(t *testing.T) {
	node := newFakeNode(t, nil, protocol.StateEvent{KnownNodes: []string{"alpha", "beta"}})
	path := writeTestConfig(t, node.URL)

	out, err := executeCommand(t, "--config", path, "nodes", "--timeout", "2s")
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\n", out)
}

func TestNodesTimesOut(t *testing.T) {
	node := newFakeNode(t, nil)
	path := writeTestConfig(t, node.URL)

	_, err := executeCommand(t, "--config", path, "nodes", "--timeout", "50ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no state update")
}

func TestWatchFollowsTransfer(t *testing.T) {
	node := newFakeNode(t, nil,
		protocol.ProgressEvent{Name: "other.bin", Progress: 100},
		protocol.ProgressEvent{Name: "a.bin", Progress: 40},
		protocol.ProgressEvent{Name: "a.bin", Progress: 100},
	)
	path := writeTestConfig(t, node.URL)

	out, err := executeCommand(t, "--config", path, "watch", "a.bin", "--timeout", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "a.bin complete")
}

func TestSessionShowAndClear(t *testing.T) {
	node := newFakeNode(t, testListing())
	path := writeTestConfig(t, node.URL)

	_, err := executeCommand(t, "--config", path, "ls")
	require.NoError(t, err)

	out, err := executeCommand(t, "--config", path, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Files: 4")

	_, err = executeCommand(t, "--config", path, "session", "clear")
	require.NoError(t, err)

	out, err = executeCommand(t, "--config", path, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kinosync "))
}
