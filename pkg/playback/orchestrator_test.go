package playback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

// fakeConnection records enqueued tracks so tests can drive the
// track-start and track-done callbacks by hand.
type fakeConnection struct {
	mu     sync.Mutex
	tracks []fakeTrack
	err    error
	skips  int
	closed bool
}

type fakeTrack struct {
	path    string
	onStart func()
	onDone  func(error)
}

func (c *fakeConnection) Enqueue(path string, onStart func(), onDone func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.tracks = append(c.tracks, fakeTrack{path: path, onStart: onStart, onDone: onDone})
	return nil
}

func (c *fakeConnection) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skips++
	return nil
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConnection) track(i int) fakeTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks[i]
}

func (c *fakeConnection) trackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracks)
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var testWav = []byte("RIFFfake-wav-bytes")

// newTestOrchestrator backs the orchestrator with an httptest VOICEVOX
// engine and returns a request counter alongside.
func newTestOrchestrator(t *testing.T) (*Orchestrator, string, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/audio_query":
			io.WriteString(w, `{"accent_phrases":[],"speedScale":1.0}`)
		case "/synthesis":
			w.Write(testWav)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := voicevox.NewClient(server.URL, 5*time.Second)
	require.NoError(t, err)

	scratch := filepath.Join(t.TempDir(), "scratch")
	orch, err := NewOrchestrator(client, scratch, 8, 1.1)
	require.NoError(t, err)
	return orch, scratch, &requests
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnqueueNoActiveSession(t *testing.T) {
	orch, scratch, requests := newTestOrchestrator(t)

	err := orch.Enqueue(context.Background(), "guild1", "こんにちは")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Short-circuits before any engine call or artifact write.
	assert.Zero(t, requests.Load())
	assert.Empty(t, scratchFiles(t, scratch))
}

func TestSkipNoActiveSession(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	assert.ErrorIs(t, orch.Skip("guild1"), ErrNoActiveSession)
}

func TestEnqueueWritesArtifactAndCleansUpOnCompletion(t *testing.T) {
	orch, scratch, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	require.NoError(t, orch.Enqueue(context.Background(), "guild1", "こんにちは"))
	require.Equal(t, 1, conn.trackCount())

	track := conn.track(0)
	data, err := os.ReadFile(track.path)
	require.NoError(t, err)
	assert.Equal(t, testWav, data)
	assert.Equal(t, filepath.Dir(track.path), scratch)

	track.onStart()
	track.onDone(nil)

	assert.NoFileExists(t, track.path)
	assert.Empty(t, scratchFiles(t, scratch))
}

func TestEnqueueCleansUpOnTrackError(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	require.NoError(t, orch.Enqueue(context.Background(), "guild1", "text"))

	track := conn.track(0)
	track.onDone(errors.New("opus encoder blew up"))

	assert.NoFileExists(t, track.path)
}

func TestCleanupFiresExactlyOnce(t *testing.T) {
	orch, scratch, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	require.NoError(t, orch.Enqueue(context.Background(), "guild1", "text"))

	// A sloppy transport may fire both the end and the error callback;
	// the release guard must tolerate it.
	track := conn.track(0)
	track.onDone(nil)
	track.onDone(errors.New("late error event"))

	assert.Empty(t, scratchFiles(t, scratch))
}

func TestEnqueueFailureOnTransportCleansUpImmediately(t *testing.T) {
	orch, scratch, _ := newTestOrchestrator(t)
	conn := &fakeConnection{err: errors.New("transport gone")}
	orch.Register("guild1", "voice1", "text1", conn)

	err := orch.Enqueue(context.Background(), "guild1", "text")
	require.Error(t, err)
	assert.Empty(t, scratchFiles(t, scratch))
}

func TestEnqueueSynthesisFailureLeavesNoArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio_query" {
			io.WriteString(w, `{"speedScale":1.0}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client, err := voicevox.NewClient(server.URL, 5*time.Second)
	require.NoError(t, err)

	scratch := filepath.Join(t.TempDir(), "scratch")
	orch, err := NewOrchestrator(client, scratch, 8, 1.1)
	require.NoError(t, err)

	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	err = orch.Enqueue(context.Background(), "guild1", "text")
	assert.ErrorIs(t, err, voicevox.ErrEngineRejected)
	assert.Empty(t, scratchFiles(t, scratch))
	assert.Zero(t, conn.trackCount())
}

func TestEnqueueOrderMatchesCallOrder(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	ctx := context.Background()
	require.NoError(t, orch.Enqueue(ctx, "guild1", "first"))
	require.NoError(t, orch.Enqueue(ctx, "guild1", "second"))

	require.Equal(t, 2, conn.trackCount())
	assert.NotEqual(t, conn.track(0).path, conn.track(1).path)

	// Playback-queue order equals enqueue order.
	first, err := os.ReadFile(conn.track(0).path)
	require.NoError(t, err)
	second, err := os.ReadFile(conn.track(1).path)
	require.NoError(t, err)
	assert.Equal(t, testWav, first)
	assert.Equal(t, testWav, second)

	conn.track(0).onDone(nil)
	conn.track(1).onDone(nil)
}

func TestRegisterReplacesExistingSession(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	old := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", old)

	replacement := &fakeConnection{}
	orch.Register("guild1", "voice2", "text2", replacement)

	assert.True(t, old.closed)

	session, ok := orch.Lookup("guild1")
	require.True(t, ok)
	assert.Equal(t, "voice2", session.VoiceChannelID)
}

func TestRemoveClosesConnection(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	require.NoError(t, orch.Remove("guild1"))
	assert.True(t, conn.closed)

	_, ok := orch.Lookup("guild1")
	assert.False(t, ok)

	// Removing an absent session is a no-op.
	assert.NoError(t, orch.Remove("guild1"))
}

func TestRemoveWaitsForPendingQueueOperation(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	session := orch.Register("guild1", "voice1", "text1", conn)

	// While an enqueue (or skip) holds the session, the transport must
	// not be closed out from under it.
	session.mu.Lock()

	removed := make(chan struct{})
	go func() {
		assert.NoError(t, orch.Remove("guild1"))
		close(removed)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, conn.isClosed())

	session.mu.Unlock()

	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("remove did not complete after the session was released")
	}
	assert.True(t, conn.isClosed())
}

func TestSkipDelegatesToTransport(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	conn := &fakeConnection{}
	orch.Register("guild1", "voice1", "text1", conn)

	require.NoError(t, orch.Skip("guild1"))
	assert.Equal(t, 1, conn.skips)
}

func TestSweepScratch(t *testing.T) {
	orch, scratch, _ := newTestOrchestrator(t)

	for _, name := range []string{"a.wav", "b.wav"} {
		require.NoError(t, os.WriteFile(filepath.Join(scratch, name), []byte("stale"), 0o644))
	}

	require.NoError(t, orch.SweepScratch())
	assert.Empty(t, scratchFiles(t, scratch))
}
