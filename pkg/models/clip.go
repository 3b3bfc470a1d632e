package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// MaxNameLength bounds Clip.Name, matching the catalog column width.
const MaxNameLength = 32

// Clip is one recorded voice memo and its catalog metadata.
type Clip struct {
	ID        uint      // Store-assigned identity, 0 until inserted
	Name      string    // Display label (<= MaxNameLength)
	CreatedAt time.Time // Set once by NewClip
	FileName  string    // Absolute path of the WAV file, set when recording starts
	Length    int       // Duration in milliseconds, 0 while recording or abandoned
}

// NewClip returns an unsaved clip stamped with now.
func NewClip(now time.Time) *Clip {
	return &Clip{CreatedAt: now, Name: ""}
}

// Duration returns Length as a time.Duration.
func (c Clip) Duration() time.Duration {
	return time.Duration(c.Length) * time.Millisecond
}

// Playable reports whether the recording completed.
func (c Clip) Playable() bool {
	return c.Length > 0
}

func (c Clip) String() string {
	return fmt.Sprintf("%s (%ds)", c.Name, c.Length/1000)
}

// ClipFileName is the audio file path for clip id inside dir.
func ClipFileName(dir string, id uint) string {
	return filepath.Join(dir, fmt.Sprintf("whisper-%d.wav", id))
}
