package whisperjar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/WhisperJar/pkg/logger"
	"github.com/himanishpuri/WhisperJar/pkg/models"
	"github.com/himanishpuri/WhisperJar/pkg/utils"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/storage"
)

// whisperService is the default implementation of the Service interface.
type whisperService struct {
	storage  Storage
	recorder *Recorder
	player   *audio.Player
	log      Logger
	config   *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("whisperjar")
	}

	if err := utils.MakeDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %w", ErrStorageUnavailable, err)
	}
	// Clip files are created at record time; fail now rather than mid-take.
	if err := utils.CheckWritable(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.dbPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	cfg.Logger.Debugf("Service ready: data=%s format=%s max=%s", cfg.DataDir, cfg.Format, cfg.MaxLength)

	return &whisperService{
		storage:  stor,
		recorder: newRecorder(cfg, stor),
		player:   audio.NewPlayer(cfg.Output, audio.WithPlayerLogger(cfg.Logger)),
		log:      cfg.Logger,
		config:   cfg,
	}, nil
}

func (s *whisperService) Recorder() *Recorder { return s.recorder }

// StartRecording begins a new clip.
func (s *whisperService) StartRecording(ctx context.Context) (*models.Clip, error) {
	return s.recorder.BeginRecording(ctx)
}

// StopRecording ends the current clip and waits until it is saved.
func (s *whisperService) StopRecording(ctx context.Context) (*models.Clip, error) {
	results, err := s.recorder.EndRecording()
	if err != nil {
		return nil, err
	}
	return waitResult(ctx, results)
}

func waitResult(ctx context.Context, results <-chan Result) (*models.Clip, error) {
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return &res.Clip, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListClips returns the clips that can be played, oldest first.
func (s *whisperService) ListClips() ([]models.Clip, error) {
	return s.storage.Query(storage.Recorded())
}

// ListAllClips includes abandoned and in-progress clips.
func (s *whisperService) ListAllClips() ([]models.Clip, error) {
	return s.storage.Query()
}

// ListClipsSince returns playable clips created after since.
func (s *whisperService) ListClipsSince(since time.Time) ([]models.Clip, error) {
	return s.storage.Query(storage.Recorded(), storage.CreatedAfter(since))
}

// CountClips reports how many clips are playable and how many rows exist.
func (s *whisperService) CountClips() (recorded, total int, err error) {
	if recorded, err = s.storage.Count(storage.Recorded()); err != nil {
		return 0, 0, err
	}
	if total, err = s.storage.Count(); err != nil {
		return 0, 0, err
	}
	return recorded, total, nil
}

func (s *whisperService) GetClip(id uint) (*models.Clip, error) {
	return s.storage.Get(id)
}

func (s *whisperService) RenameClip(id uint, name string) (*models.Clip, error) {
	return s.storage.Rename(id, name)
}

// Play starts playback of clip id, replacing whatever was playing.
func (s *whisperService) Play(ctx context.Context, id uint) (*audio.Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clip, err := s.storage.Get(id)
	if err != nil {
		return nil, err
	}
	if !clip.Playable() {
		return nil, fmt.Errorf("%w: clip %d", ErrNotPlayable, id)
	}
	s.log.Infof("Playing clip %d: %s", clip.ID, clip.FileName)
	return s.player.Play(clip.FileName)
}

func (s *whisperService) StopPlayback() {
	s.player.Stop()
}

// Close stops playback, finishes any recording in progress and releases
// the catalog.
func (s *whisperService) Close() error {
	s.player.Stop()

	var errs []error
	if results, err := s.recorder.EndRecording(); err == nil {
		if res := <-results; res.Err != nil {
			errs = append(errs, res.Err)
		}
	} else if !errors.Is(err, ErrNotRecording) {
		errs = append(errs, err)
	}
	s.recorder.Wait()

	errs = append(errs, s.storage.Close())
	return errors.Join(errs...)
}
