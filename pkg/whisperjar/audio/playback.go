package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Player owns the playback output. Only the most recent Playback is live;
// starting another stops it first.
type Player struct {
	device OutputDevice
	log    Logger

	// playMu is held from releasing the previous output until the new
	// playback is current, so at most one output is open.
	playMu sync.Mutex

	mu      sync.Mutex
	current *Playback
}

type PlayerOption func(*Player)

// WithPlayerLogger sets the logger used for device diagnostics.
func WithPlayerLogger(l Logger) PlayerOption {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPlayer(device OutputDevice, opts ...PlayerOption) *Player {
	p := &Player{device: device, log: nopLogger{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Playback is one play of one file.
type Playback struct {
	id       string
	fileName string
	duration time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan error
	finished chan struct{}
}

func (pb *Playback) ID() string              { return pb.id }
func (pb *Playback) FileName() string        { return pb.fileName }
func (pb *Playback) Duration() time.Duration { return pb.duration }

// Done receives the playback outcome once and is then closed.
func (pb *Playback) Done() <-chan error { return pb.done }

// Stop halts playback; it is safe to call more than once.
func (pb *Playback) Stop() {
	pb.stopOnce.Do(func() { close(pb.stop) })
}

// Current returns the live playback, or nil.
func (p *Player) Current() *Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stop halts the live playback, if any, and waits for it to release the
// output.
func (p *Player) Stop() {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
		<-prev.finished
	}
}

// Play loads fileName and starts playing it immediately.
func (p *Player) Play(fileName string) (*Playback, error) {
	f, err := os.Open(fileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
		}
		return nil, fmt.Errorf("opening %s: %w", fileName, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrDecode, fileName)
	}
	if dec.WavAudioFormat != wavFormatPCM || dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported format %d/%d-bit", ErrDecode, fileName, dec.WavAudioFormat, dec.BitDepth)
	}
	dur, err := dec.Duration()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, fileName, err)
	}

	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Encoding:   LinearPCM,
		Quality:    QualityHigh,
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	// Release the previous handle before taking a new one.
	p.Stop()

	if p.device == nil {
		f.Close()
		return nil, fmt.Errorf("%w: no output device", ErrDeviceUnavailable)
	}
	out, err := p.device.OpenOutput(format)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: opening output: %w", ErrDeviceUnavailable, err)
	}
	if err := out.Start(); err != nil {
		out.Close()
		f.Close()
		return nil, fmt.Errorf("%w: starting output: %w", ErrDeviceUnavailable, err)
	}

	pb := &Playback{
		id:       uuid.NewString(),
		fileName: fileName,
		duration: dur,
		stop:     make(chan struct{}),
		done:     make(chan error, 1),
		finished: make(chan struct{}),
	}

	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()

	p.log.Debugf("playback %s started: %s (%s, %s)", pb.id, fileName, format, dur)
	go p.run(pb, dec, out, f, format)
	return pb, nil
}

func (p *Player) run(pb *Playback, dec *wav.Decoder, out Output, f *os.File, format Format) {
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:   make([]int, FramesPerBuffer*format.Channels),
	}
	samples := make([]int16, len(buf.Data))

	var runErr error
loop:
	for {
		select {
		case <-pb.stop:
			break loop
		default:
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil {
			runErr = fmt.Errorf("%w: %w", ErrDecode, err)
			break
		}
		if n == 0 {
			break
		}
		for i, v := range buf.Data[:n] {
			samples[i] = int16(v)
		}
		if err := out.Write(samples[:n]); err != nil {
			runErr = fmt.Errorf("writing output: %w", err)
			break
		}
	}

	stopErr := out.Stop()
	closeErr := out.Close()
	f.Close()

	p.mu.Lock()
	if p.current == pb {
		p.current = nil
	}
	p.mu.Unlock()

	if runErr != nil {
		p.log.Warnf("playback %s: %v", pb.id, runErr)
	}
	pb.done <- errors.Join(runErr, stopErr, closeErr)
	close(pb.done)
	close(pb.finished)
}
