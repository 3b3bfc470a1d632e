//go:build portaudio

// Package portaudio provides the sound-card backed capture and playback
// devices. It needs cgo and libportaudio, so it is only compiled with the
// "portaudio" build tag.
package portaudio

import (
	"fmt"
	"io"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
)

// Device opens streams on the host's default input and output.
type Device struct {
	mu     sync.Mutex
	closed bool
}

// New initializes PortAudio. Call Close when done.
func New() (*Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &Device{}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return pa.Terminate()
}

func (d *Device) OpenInput(f audio.Format) (audio.Input, error) {
	dev, err := pa.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("default input device: %w", err)
	}
	if dev.MaxInputChannels < f.Channels {
		return nil, fmt.Errorf("%s supports %d input channels, need %d", dev.Name, dev.MaxInputChannels, f.Channels)
	}
	buf := make([]int16, audio.FramesPerBuffer*f.Channels)
	stream, err := pa.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), audio.FramesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("opening input stream: %w", err)
	}
	return &inputStream{stream: stream, buf: buf}, nil
}

func (d *Device) OpenOutput(f audio.Format) (audio.Output, error) {
	buf := make([]int16, audio.FramesPerBuffer*f.Channels)
	stream, err := pa.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), audio.FramesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("opening output stream: %w", err)
	}
	return &outputStream{stream: stream, buf: buf}, nil
}

type inputStream struct {
	stream  *pa.Stream
	buf     []int16
	pending []int16
	stopped bool
}

func (in *inputStream) Start() error { return in.stream.Start() }

// Read hands out the device buffer, keeping any part that did not fit in
// p for the next call.
func (in *inputStream) Read(p []int16) (int, error) {
	if len(in.pending) == 0 {
		if in.stopped {
			return 0, io.EOF
		}
		if err := in.stream.Read(); err != nil && err != pa.InputOverflowed {
			return 0, err
		}
		in.pending = in.buf
	}
	n := copy(p, in.pending)
	in.pending = in.pending[n:]
	return n, nil
}

// Stop halts the stream; a partly consumed buffer is still handed out.
func (in *inputStream) Stop() error {
	in.stopped = true
	return in.stream.Stop()
}

func (in *inputStream) Close() error { return in.stream.Close() }

type outputStream struct {
	stream *pa.Stream
	buf    []int16
}

func (out *outputStream) Start() error { return out.stream.Start() }

func (out *outputStream) Write(p []int16) error {
	for len(p) > 0 {
		n := copy(out.buf, p)
		clear(out.buf[n:])
		p = p[n:]
		if err := out.stream.Write(); err != nil && err != pa.OutputUnderflowed {
			return err
		}
	}
	return nil
}

func (out *outputStream) Stop() error  { return out.stream.Stop() }
func (out *outputStream) Close() error { return out.stream.Close() }
