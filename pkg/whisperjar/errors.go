package whisperjar

import (
	"errors"

	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/storage"
)

var (
	// ErrAlreadyRecording is returned by BeginRecording unless the
	// recorder is Ready.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by EndRecording unless a recording is in
	// progress.
	ErrNotRecording = errors.New("not recording")
	// ErrNotPlayable is returned when playing a clip whose recording never
	// completed.
	ErrNotPlayable = errors.New("clip has no completed recording")
)

// Errors from the storage and audio layers, re-exported for callers.
var (
	ErrStorageUnavailable = storage.ErrStorageUnavailable
	ErrNotFound           = storage.ErrNotFound
	ErrNameTooLong        = storage.ErrNameTooLong
	ErrDeviceUnavailable  = audio.ErrDeviceUnavailable
	ErrFileNotFound       = audio.ErrFileNotFound
	ErrDecode             = audio.ErrDecode
)
