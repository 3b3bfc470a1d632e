package audio

import (
	"io"
	"sync"
	"time"
)

// toneDevice hands out total samples of a ramp, then io.EOF.
type toneDevice struct {
	total   int
	openErr error

	mu      sync.Mutex
	opened  int
	stopped bool
	closed  bool
}

func (d *toneDevice) OpenInput(f Format) (Input, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	return &toneInput{dev: d, remaining: d.total}, nil
}

type toneInput struct {
	dev       *toneDevice
	remaining int
	next      int16
}

func (in *toneInput) Start() error { return nil }

func (in *toneInput) Read(buf []int16) (int, error) {
	if in.remaining == 0 {
		return 0, io.EOF
	}
	n := min(len(buf), in.remaining)
	for i := 0; i < n; i++ {
		buf[i] = in.next
		in.next++
	}
	in.remaining -= n
	return n, nil
}

func (in *toneInput) Stop() error {
	in.dev.mu.Lock()
	in.dev.stopped = true
	in.dev.mu.Unlock()
	return nil
}

func (in *toneInput) Close() error {
	in.dev.mu.Lock()
	in.dev.closed = true
	in.dev.mu.Unlock()
	return nil
}

// liveDevice captures a ramp until it is stopped, then hands out tail
// more samples it still had buffered before reporting io.EOF.
type liveDevice struct {
	tail int

	mu       sync.Mutex
	produced int
}

func (d *liveDevice) OpenInput(f Format) (Input, error) {
	return &liveInput{dev: d}, nil
}

func (d *liveDevice) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.produced
}

type liveInput struct {
	dev     *liveDevice
	stopped bool
	tail    int
}

func (in *liveInput) Start() error { return nil }

func (in *liveInput) Read(buf []int16) (int, error) {
	n := len(buf)
	if in.stopped {
		if in.tail == 0 {
			return 0, io.EOF
		}
		n = min(n, in.tail)
		in.tail -= n
	} else {
		time.Sleep(time.Millisecond)
	}
	in.dev.mu.Lock()
	for i := 0; i < n; i++ {
		buf[i] = int16(in.dev.produced + i)
	}
	in.dev.produced += n
	in.dev.mu.Unlock()
	return n, nil
}

func (in *liveInput) Stop() error {
	in.stopped = true
	in.tail = in.dev.tail
	return nil
}

func (in *liveInput) Close() error { return nil }

// sinkDevice collects every sample written to it. Each Write takes at
// least delay.
type sinkDevice struct {
	delay   time.Duration
	openErr error

	mu      sync.Mutex
	samples []int16
	formats []Format
	opened  int
	closed  int
	live    int
	maxLive int
}

func (d *sinkDevice) OpenOutput(f Format) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	d.live++
	d.maxLive = max(d.maxLive, d.live)
	d.formats = append(d.formats, f)
	return &sinkOutput{dev: d}, nil
}

func (d *sinkDevice) written() []int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int16(nil), d.samples...)
}

type sinkOutput struct {
	dev *sinkDevice
}

func (o *sinkOutput) Start() error { return nil }

func (o *sinkOutput) Write(buf []int16) error {
	if o.dev.delay > 0 {
		time.Sleep(o.dev.delay)
	}
	o.dev.mu.Lock()
	o.dev.samples = append(o.dev.samples, buf...)
	o.dev.mu.Unlock()
	return nil
}

func (o *sinkOutput) Stop() error { return nil }

func (o *sinkOutput) Close() error {
	o.dev.mu.Lock()
	o.dev.closed++
	o.dev.live--
	o.dev.mu.Unlock()
	return nil
}
