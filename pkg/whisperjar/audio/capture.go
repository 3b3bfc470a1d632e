package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// SessionState is the lifecycle of a CaptureSession.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRecording
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRecording:
		return "recording"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const wavFormatPCM = 1

// CaptureSession binds one recording attempt to one input stream. A
// session records once; Stopped is terminal.
type CaptureSession struct {
	id     string
	device InputDevice
	log    Logger

	mu     sync.Mutex
	state  SessionState
	target string
	format Format
	stopCh chan struct{}
	done   chan error

	frames atomic.Int64
	peak   atomic.Uint64
}

type CaptureOption func(*CaptureSession)

// WithCaptureLogger sets the logger used for device diagnostics.
func WithCaptureLogger(l Logger) CaptureOption {
	return func(s *CaptureSession) {
		if l != nil {
			s.log = l
		}
	}
}

func NewCaptureSession(device InputDevice, opts ...CaptureOption) *CaptureSession {
	s := &CaptureSession{
		id:     uuid.NewString(),
		device: device,
		log:    nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CaptureSession) ID() string { return s.id }

func (s *CaptureSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target is the file the session writes to, empty before Start.
func (s *CaptureSession) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Frames is the number of frames written so far.
func (s *CaptureSession) Frames() int64 { return s.frames.Load() }

// Peak is the absolute peak of the most recent buffer, in [0,1].
func (s *CaptureSession) Peak() float64 { return math.Float64frombits(s.peak.Load()) }

// Start configures the device with format and begins writing targetFile.
// It does not wait for audio. On failure nothing is left running and the
// session stays Idle.
func (s *CaptureSession) Start(targetFile string, format Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionIdle {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, s.state)
	}
	if s.device == nil {
		return fmt.Errorf("%w: no input device", ErrDeviceUnavailable)
	}
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	in, err := s.device.OpenInput(format)
	if err != nil {
		return fmt.Errorf("%w: opening input: %w", ErrDeviceUnavailable, err)
	}

	f, err := os.Create(targetFile)
	if err != nil {
		in.Close()
		return fmt.Errorf("%w: creating %s: %w", ErrDeviceUnavailable, targetFile, err)
	}

	enc := wav.NewEncoder(f, format.SampleRate, format.BitDepth(), format.Channels, wavFormatPCM)

	if err := in.Start(); err != nil {
		in.Close()
		f.Close()
		os.Remove(targetFile)
		return fmt.Errorf("%w: starting input: %w", ErrDeviceUnavailable, err)
	}

	s.state = SessionRecording
	s.target = targetFile
	s.format = format
	s.stopCh = make(chan struct{})
	s.done = make(chan error, 1)

	s.log.Debugf("capture %s started: %s (%s)", s.id, targetFile, format)
	go s.pump(in, enc, f)
	return nil
}

// Stop asks the device to stop. The returned channel receives exactly one
// value once the device has stopped and the file is finalized, then
// closes.
func (s *CaptureSession) Stop() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionRecording {
		return nil, fmt.Errorf("%w: stop while %s", ErrInvalidState, s.state)
	}
	s.state = SessionStopped
	close(s.stopCh)
	return s.done, nil
}

func (s *CaptureSession) pump(in Input, enc *wav.Encoder, f *os.File) {
	format := s.format
	raw := make([]int16, FramesPerBuffer*format.Channels)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           make([]int, len(raw)),
		SourceBitDepth: format.BitDepth(),
	}

	var (
		runErr  error
		stopErr error
		stopped bool
	)
	stopReq := s.stopCh
	for {
		select {
		case <-stopReq:
			// Stop the device, then keep reading what it already captured
			// until it reports the end of the stream.
			stopErr = in.Stop()
			stopped = true
			stopReq = nil
		default:
		}

		n, err := in.Read(raw)
		if n > 0 {
			buf.Data = buf.Data[:n]
			var peak int
			for i, v := range raw[:n] {
				buf.Data[i] = int(v)
				if a := absInt(int(v)); a > peak {
					peak = a
				}
			}
			s.peak.Store(math.Float64bits(float64(peak) / 32768.0))
			if werr := enc.Write(buf); werr != nil {
				runErr = fmt.Errorf("writing samples: %w", werr)
				break
			}
			s.frames.Add(int64(n / format.Channels))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				runErr = fmt.Errorf("reading input: %w", err)
			}
			break
		}
		if n == 0 && stopped {
			break
		}
	}

	if runErr != nil {
		s.log.Warnf("capture %s: %v", s.id, runErr)
	}

	if !stopped {
		stopErr = in.Stop()
	}
	closeErr := in.Close()
	if s.frames.Load() == 0 {
		// Forces the RIFF header and data chunk out so Close can patch sizes.
		buf.Data = buf.Data[:0]
		if werr := enc.Write(buf); werr != nil && runErr == nil {
			runErr = fmt.Errorf("writing header: %w", werr)
		}
	}
	encErr := enc.Close()
	fileErr := f.Close()

	// The device may end on its own; completion is only reported once a
	// stop has been requested.
	<-s.stopCh

	s.log.Debugf("capture %s finalized: %d frames", s.id, s.frames.Load())
	s.done <- errors.Join(runErr, stopErr, closeErr, encErr, fileErr)
	close(s.done)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
