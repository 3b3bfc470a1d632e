package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Info describes a clip file on disk.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int64
	Duration   time.Duration
	Size       int64
}

// ProbeWAV reads the header of the WAV file at path.
func ProbeWAV(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrDecode, path)
	}
	dur, err := dec.Duration()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	var frames int64
	if frameSize := int64(dec.NumChans) * int64(dec.BitDepth) / 8; frameSize > 0 {
		frames = dec.PCMLen() / frameSize
	}

	return &Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Frames:     frames,
		Duration:   dur,
		Size:       st.Size(),
	}, nil
}
