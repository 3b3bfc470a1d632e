package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err, ok := <-ch:
		require.True(t, ok, "completion channel closed without a value")
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

func TestDefaultFormatIsPolicy(t *testing.T) {
	assert.Equal(t, 44100, DefaultFormat.SampleRate)
	assert.Equal(t, 1, DefaultFormat.Channels)
	assert.Equal(t, LinearPCM, DefaultFormat.Encoding)
	assert.Equal(t, QualityHigh, DefaultFormat.Quality)
	assert.Equal(t, 16, DefaultFormat.BitDepth())
	assert.NoError(t, DefaultFormat.Validate())
	assert.Equal(t, 88200, DefaultFormat.BytesPerSecond())
}

func TestFormatValidate(t *testing.T) {
	bad := []Format{
		{SampleRate: 0, Channels: 1, Encoding: LinearPCM, Quality: QualityHigh},
		{SampleRate: 44100, Channels: 3, Encoding: LinearPCM, Quality: QualityHigh},
		{SampleRate: 44100, Channels: 1, Encoding: 0, Quality: QualityHigh},
		{SampleRate: 44100, Channels: 1, Encoding: LinearPCM, Quality: QualityMax},
	}
	for _, f := range bad {
		assert.Error(t, f.Validate(), "format %v should be rejected", f)
	}
}

func TestCaptureWritesWAV(t *testing.T) {
	dev := &toneDevice{total: 5000}
	target := filepath.Join(t.TempDir(), "whisper-1.wav")

	s := NewCaptureSession(dev)
	assert.Equal(t, SessionIdle, s.State())
	assert.NotEmpty(t, s.ID())

	require.NoError(t, s.Start(target, DefaultFormat))
	assert.Equal(t, SessionRecording, s.State())
	assert.Equal(t, target, s.Target())

	done, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, SessionStopped, s.State())
	require.NoError(t, waitErr(t, done))

	_, open := <-done
	assert.False(t, open, "completion channel must close after its single value")

	info, err := ProbeWAV(target)
	require.NoError(t, err)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.Greater(t, info.Size, int64(44))
	assert.Equal(t, int64(5000), info.Frames)

	assert.True(t, dev.stopped)
	assert.True(t, dev.closed)
	assert.Equal(t, int64(5000), s.Frames())
}

func TestCaptureKeepsSamplesBufferedAtStop(t *testing.T) {
	dev := &liveDevice{tail: 3000}
	target := filepath.Join(t.TempDir(), "whisper-1.wav")

	s := NewCaptureSession(dev)
	require.NoError(t, s.Start(target, DefaultFormat))
	time.Sleep(10 * time.Millisecond)

	done, err := s.Stop()
	require.NoError(t, err)
	require.NoError(t, waitErr(t, done))

	produced := dev.total()
	assert.GreaterOrEqual(t, produced, 3000)
	assert.Equal(t, int64(produced), s.Frames())

	info, err := ProbeWAV(target)
	require.NoError(t, err)
	assert.Equal(t, int64(produced), info.Frames)
}

func TestCaptureEmptyRecordingIsValidWAV(t *testing.T) {
	dev := &toneDevice{total: 0}
	target := filepath.Join(t.TempDir(), "empty.wav")

	s := NewCaptureSession(dev)
	require.NoError(t, s.Start(target, DefaultFormat))
	done, err := s.Stop()
	require.NoError(t, err)
	require.NoError(t, waitErr(t, done))

	info, err := ProbeWAV(target)
	require.NoError(t, err)
	assert.Zero(t, info.Frames)
}

func TestCaptureStartDeviceFailure(t *testing.T) {
	dev := &toneDevice{openErr: errors.New("no microphone")}
	target := filepath.Join(t.TempDir(), "whisper-1.wav")

	s := NewCaptureSession(dev)
	err := s.Start(target, DefaultFormat)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, SessionIdle, s.State())

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "no file should be created")

	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCaptureStartUnwritableTarget(t *testing.T) {
	dev := &toneDevice{total: 10}
	target := filepath.Join(t.TempDir(), "missing", "whisper-1.wav")

	s := NewCaptureSession(dev)
	err := s.Start(target, DefaultFormat)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, SessionIdle, s.State())
	assert.True(t, dev.closed, "input must be released on failure")
}

func TestCaptureRejectsBadFormat(t *testing.T) {
	s := NewCaptureSession(&toneDevice{})
	f := DefaultFormat
	f.Channels = 0
	err := s.Start(filepath.Join(t.TempDir(), "x.wav"), f)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestCaptureSessionIsSingleUse(t *testing.T) {
	target := filepath.Join(t.TempDir(), "once.wav")
	s := NewCaptureSession(&toneDevice{total: 100})

	require.NoError(t, s.Start(target, DefaultFormat))
	assert.ErrorIs(t, s.Start(target, DefaultFormat), ErrInvalidState)

	done, err := s.Stop()
	require.NoError(t, err)
	require.NoError(t, waitErr(t, done))

	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.Start(target, DefaultFormat), ErrInvalidState)
}
