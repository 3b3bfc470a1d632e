package whisperjar

import (
	"context"
	"time"

	"github.com/himanishpuri/WhisperJar/pkg/models"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/storage"
)

type Service interface {
	StartRecording(ctx context.Context) (*models.Clip, error)
	StopRecording(ctx context.Context) (*models.Clip, error)
	Recorder() *Recorder
	ListClips() ([]models.Clip, error)
	ListAllClips() ([]models.Clip, error)
	ListClipsSince(since time.Time) ([]models.Clip, error)
	CountClips() (recorded, total int, err error)
	GetClip(id uint) (*models.Clip, error)
	RenameClip(id uint, name string) (*models.Clip, error)
	Play(ctx context.Context, id uint) (*audio.Playback, error)
	StopPlayback()
	Close() error
}

type Storage interface {
	Insert(clip *models.Clip) (uint, error)
	Update(clip *models.Clip) error
	Query(filters ...storage.Filter) ([]models.Clip, error)
	Count(filters ...storage.Filter) (int, error)
	Get(id uint) (*models.Clip, error)
	Rename(id uint, name string) (*models.Clip, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Clock supplies wall-clock time to the recorder.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
