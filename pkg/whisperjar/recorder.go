package whisperjar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/WhisperJar/pkg/logger"
	"github.com/himanishpuri/WhisperJar/pkg/models"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
)

// RecorderState is the record-one-clip cycle:
// Ready -> Recording -> Finalizing -> Ready.
type RecorderState int

const (
	StateReady RecorderState = iota
	StateRecording
	StateFinalizing
)

func (s RecorderState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Result is delivered once per EndRecording.
type Result struct {
	Clip models.Clip
	Err  error
}

// Recorder couples one capture session at a time to the clip catalog.
// All fields below mu are guarded by it, including updates made from the
// capture completion goroutine.
type Recorder struct {
	store     Storage
	input     audio.InputDevice
	format    audio.Format
	dir       string
	clock     Clock
	maxLength time.Duration
	log       Logger

	mu        sync.Mutex
	state     RecorderState
	clip      *models.Clip
	session   *audio.CaptureSession
	startedAt time.Time
	pending   chan struct{}
}

// NewRecorder builds a recorder over store. Options other than the data
// dir, format, input device, clock, max length and logger are ignored.
func NewRecorder(store Storage, opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("recorder")
	}
	return newRecorder(cfg, store)
}

func newRecorder(cfg *Config, store Storage) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Recorder{
		store:     store,
		input:     cfg.Input,
		format:    cfg.Format,
		dir:       cfg.DataDir,
		clock:     clock,
		maxLength: maxLength,
		log:       cfg.Logger,
	}
}

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) MaxLength() time.Duration { return r.maxLength }

// Current returns a copy of the in-flight clip, or nil when Ready.
func (r *Recorder) Current() *models.Clip {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return nil
	}
	c := *r.clip
	return &c
}

// Elapsed is the wall-clock time since capture started, 0 when Ready.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked()
}

func (r *Recorder) elapsedLocked() time.Duration {
	if r.state == StateReady {
		return 0
	}
	if d := r.clock.Now().Sub(r.startedAt); d > 0 {
		return d
	}
	return 0
}

// Progress is Elapsed as a fraction of MaxLength, capped at 1.
func (r *Recorder) Progress() float64 {
	p := float64(r.Elapsed()) / float64(r.maxLength)
	if p > 1 {
		return 1
	}
	return p
}

// Level is the input peak of the most recent buffer, 0 when not recording.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return 0
	}
	return r.session.Peak()
}

// BeginRecording inserts a new clip, names its file after the assigned id
// and starts capturing into it. If capture cannot start, the inserted row
// stays behind with Length 0 and the recorder remains Ready.
func (r *Recorder) BeginRecording(ctx context.Context) (*models.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return nil, fmt.Errorf("%w: recorder is %s", ErrAlreadyRecording, r.state)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clip := models.NewClip(r.clock.Now())
	if _, err := r.store.Insert(clip); err != nil {
		return nil, fmt.Errorf("inserting clip: %w", err)
	}
	clip.FileName = models.ClipFileName(r.dir, clip.ID)

	session := audio.NewCaptureSession(r.input, audio.WithCaptureLogger(r.log))
	if err := session.Start(clip.FileName, r.format); err != nil {
		r.log.Warnf("Clip %d left without audio: %v", clip.ID, err)
		return nil, fmt.Errorf("starting capture for clip %d: %w", clip.ID, err)
	}

	r.startedAt = r.clock.Now()
	r.clip = clip
	r.session = session
	r.state = StateRecording

	r.log.Infof("Recording clip %d to %s", clip.ID, clip.FileName)
	out := *clip
	return &out, nil
}

// EndRecording stops the capture. The returned channel receives the
// finalized clip once the device has confirmed the stop and the catalog
// is updated, then closes. Only one caller per recording succeeds; the
// rest get ErrNotRecording.
func (r *Recorder) EndRecording() (<-chan Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endLocked()
}

func (r *Recorder) endLocked() (<-chan Result, error) {
	if r.state != StateRecording {
		return nil, fmt.Errorf("%w: recorder is %s", ErrNotRecording, r.state)
	}

	done, err := r.session.Stop()
	if err != nil {
		r.resetLocked()
		return nil, fmt.Errorf("stopping capture: %w", err)
	}
	r.state = StateFinalizing
	r.pending = make(chan struct{})

	results := make(chan Result, 1)
	go r.finalize(r.clip, r.startedAt, done, results, r.pending)
	return results, nil
}

func (r *Recorder) finalize(clip *models.Clip, startedAt time.Time, done <-chan error, results chan<- Result, pending chan struct{}) {
	stopErr := <-done

	r.mu.Lock()
	// Wall-clock delta around an asynchronous stop; device latency is
	// included.
	length := r.clock.Now().Sub(startedAt).Milliseconds()
	if length < 0 {
		length = 0
	}

	var err error
	if stopErr != nil {
		err = fmt.Errorf("finalizing clip %d: %w", clip.ID, stopErr)
		r.log.Errorf("Clip %d not finalized: %v", clip.ID, stopErr)
	} else {
		clip.Length = int(length)
		if uerr := r.store.Update(clip); uerr != nil {
			clip.Length = 0
			err = fmt.Errorf("saving clip %d: %w", clip.ID, uerr)
			r.log.Errorf("Clip %d not saved: %v", clip.ID, uerr)
		} else {
			r.log.Infof("Recorded clip %d (%dms)", clip.ID, clip.Length)
		}
	}
	snapshot := *clip
	r.resetLocked()
	r.pending = nil
	close(pending)
	r.mu.Unlock()

	results <- Result{Clip: snapshot, Err: err}
	close(results)
}

// Wait blocks while a clip is being finalized.
func (r *Recorder) Wait() {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()
	if pending != nil {
		<-pending
	}
}

func (r *Recorder) resetLocked() {
	r.state = StateReady
	r.clip = nil
	r.session = nil
	r.startedAt = time.Time{}
}

// AutoStop polls every interval and ends the current recording once it
// has run for MaxLength. It returns the EndRecording channel when it
// stopped the clip itself, and a nil channel if the recording it was
// watching ended some other way.
func (r *Recorder) AutoStop(ctx context.Context, interval time.Duration) (<-chan Result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	watched := r.clip.ID
	r.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		r.mu.Lock()
		if r.state != StateRecording || r.clip.ID != watched {
			r.mu.Unlock()
			return nil, nil
		}
		if r.elapsedLocked() < r.maxLength {
			r.mu.Unlock()
			continue
		}
		r.log.Debugf("Clip %d reached max length %s", watched, r.maxLength)
		results, err := r.endLocked()
		r.mu.Unlock()
		return results, err
	}
}
