package audio

import "errors"

var (
	// ErrDeviceUnavailable is returned when a capture or playback device
	// cannot be configured.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrFileNotFound is returned when a clip file does not exist.
	ErrFileNotFound = errors.New("audio file not found")
	// ErrDecode is returned when a clip file is not a readable PCM WAV.
	ErrDecode = errors.New("audio decode error")
	// ErrInvalidState is returned when a session operation does not fit
	// its current state.
	ErrInvalidState = errors.New("invalid session state")
)

// Input is an opened capture stream. Samples are interleaved int16.
type Input interface {
	Start() error
	// Read blocks until samples are available and returns how many were
	// copied into buf. io.EOF means the stream ended.
	Read(buf []int16) (int, error)
	// Stop ends capture. Samples captured before Stop are still returned
	// by Read, followed by io.EOF.
	Stop() error
	Close() error
}

// InputDevice opens capture streams.
type InputDevice interface {
	OpenInput(format Format) (Input, error)
}

// Output is an opened playback stream.
type Output interface {
	Start() error
	Write(buf []int16) error
	Stop() error
	Close() error
}

// OutputDevice opens playback streams.
type OutputDevice interface {
	OpenOutput(format Format) (Output, error)
}

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
