package audio

import (
	"errors"
	"io"
	"sync"
	"time"
)

// SilenceDevice is a real-time paced null device: inputs deliver zeros at
// the format's rate and outputs discard at the same rate. It lets the
// recorder run where no sound hardware exists.
type SilenceDevice struct{}

func (SilenceDevice) OpenInput(f Format) (Input, error) {
	return &silenceStream{format: f}, nil
}

func (SilenceDevice) OpenOutput(f Format) (Output, error) {
	return &silenceStream{format: f}, nil
}

type silenceStream struct {
	format Format

	mu      sync.Mutex
	running bool
	stopped bool
	next    time.Time
}

func (s *silenceStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.stopped = false
	s.next = time.Now()
	return nil
}

// pace sleeps until the wall clock catches up with the samples moved so far.
func (s *silenceStream) pace(samples int) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("stream not started")
	}
	frames := samples / s.format.Channels
	s.next = s.next.Add(time.Duration(frames) * time.Second / time.Duration(s.format.SampleRate))
	wait := time.Until(s.next)
	s.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

func (s *silenceStream) Read(buf []int16) (int, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return 0, io.EOF
	}
	clear(buf)
	if err := s.pace(len(buf)); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (s *silenceStream) Write(buf []int16) error {
	return s.pace(len(buf))
}

func (s *silenceStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.stopped = true
	return nil
}

func (s *silenceStream) Close() error { return nil }
