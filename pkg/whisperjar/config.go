package whisperjar

import (
	"path/filepath"
	"time"

	"github.com/himanishpuri/WhisperJar/pkg/utils"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/storage"
)

// DefaultMaxLength is how long a recording may run before AutoStop ends it.
const DefaultMaxLength = 10 * time.Second

type Config struct {
	DataDir   string
	DBPath    string
	MaxLength time.Duration
	Format    audio.Format
	Logger    Logger
	Storage   Storage
	Input     audio.InputDevice
	Output    audio.OutputDevice
	Clock     Clock
}

type Option func(*Config)

// WithDataDir sets the directory holding the catalog and clip files.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithDBPath overrides the catalog location; by default it lives in DataDir.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithMaxLength(d time.Duration) Option {
	return func(c *Config) {
		c.MaxLength = d
	}
}

func WithFormat(f audio.Format) Option {
	return func(c *Config) {
		c.Format = f
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithInputDevice(dev audio.InputDevice) Option {
	return func(c *Config) {
		c.Input = dev
	}
}

func WithOutputDevice(dev audio.OutputDevice) Option {
	return func(c *Config) {
		c.Output = dev
	}
}

func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

func defaultConfig() *Config {
	dataDir, err := utils.DocumentsDir()
	if err != nil {
		dataDir = "."
	}
	return &Config{
		DataDir:   dataDir,
		MaxLength: DefaultMaxLength,
		Format:    audio.DefaultFormat,
		Input:     audio.CommandDevice{},
		Output:    audio.CommandDevice{},
		Clock:     systemClock{},
	}
}

func (c *Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, storage.DefaultDBFile)
}
