package whisperjar

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/WhisperJar/pkg/logger"
	"github.com/himanishpuri/WhisperJar/pkg/models"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
)

// manualClock only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type brokenDevice struct{}

func (brokenDevice) OpenInput(audio.Format) (audio.Input, error) {
	return nil, errors.New("no microphone")
}

func (brokenDevice) OpenOutput(audio.Format) (audio.Output, error) {
	return nil, errors.New("no speaker")
}

// tapeDevice produces full buffers until stopped, then flushes tail
// buffered samples before io.EOF. It counts everything it handed out.
type tapeDevice struct {
	tail int

	mu       sync.Mutex
	produced int
}

func (d *tapeDevice) OpenInput(audio.Format) (audio.Input, error) {
	return &tapeInput{dev: d}, nil
}

func (d *tapeDevice) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.produced
}

type tapeInput struct {
	dev     *tapeDevice
	stopped bool
	left    int
}

func (in *tapeInput) Start() error { return nil }

func (in *tapeInput) Read(buf []int16) (int, error) {
	n := len(buf)
	if in.stopped {
		if in.left == 0 {
			return 0, io.EOF
		}
		n = min(n, in.left)
		in.left -= n
	} else {
		time.Sleep(time.Millisecond)
	}
	for i := range buf[:n] {
		buf[i] = 1000
	}
	in.dev.mu.Lock()
	in.dev.produced += n
	in.dev.mu.Unlock()
	return n, nil
}

func (in *tapeInput) Stop() error {
	in.stopped = true
	in.left = in.dev.tail
	return nil
}

func (in *tapeInput) Close() error { return nil }

type fixture struct {
	dir   string
	clock *manualClock
	store Storage
	rec   *Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := NewSQLiteStorage(filepath.Join(dir, "whispers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := newManualClock()
	base := []Option{
		WithDataDir(dir),
		WithClock(clock),
		WithInputDevice(audio.SilenceDevice{}),
		WithLogger(logger.Discard()),
	}
	rec := NewRecorder(store, append(base, opts...)...)
	return &fixture{dir: dir, clock: clock, store: store, rec: rec}
}

func waitResultT(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-results:
		require.True(t, ok, "result channel closed without a value")
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recording to finalize")
		return Result{}
	}
}

// record runs one full cycle of length d on the fixture clock.
func (f *fixture) record(t *testing.T, d time.Duration) models.Clip {
	t.Helper()
	_, err := f.rec.BeginRecording(context.Background())
	require.NoError(t, err)
	f.clock.Advance(d)
	results, err := f.rec.EndRecording()
	require.NoError(t, err)
	res := waitResultT(t, results)
	require.NoError(t, res.Err)
	return res.Clip
}
