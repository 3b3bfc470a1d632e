package audio

import "fmt"

// Encoding identifies how samples are laid out in the clip file.
type Encoding int

const (
	LinearPCM Encoding = iota + 1
)

func (e Encoding) String() string {
	if e == LinearPCM {
		return "lpcm"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// Quality is the encoder quality hint; it selects the sample bit depth.
type Quality int

const (
	QualityMin Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityMax
)

// BitDepth returns the PCM sample width the quality maps to.
func (q Quality) BitDepth() int {
	switch q {
	case QualityMin, QualityLow:
		return 8
	case QualityMax:
		return 24
	default:
		return 16
	}
}

// FramesPerBuffer is the number of frames moved per device read or write.
const FramesPerBuffer = 1024

// Format is the capture configuration handed to an input device.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
	Quality    Quality
}

// DefaultFormat is the recording policy: 44.1kHz linear PCM mono, high
// quality.
var DefaultFormat = Format{
	SampleRate: 44100,
	Channels:   1,
	Encoding:   LinearPCM,
	Quality:    QualityHigh,
}

// BitDepth is the sample width written to the WAV file.
func (f Format) BitDepth() int { return f.Quality.BitDepth() }

// Validate reports whether the pipeline can carry f. Samples travel as
// int16, so only 16-bit qualities are accepted.
func (f Format) Validate() error {
	if f.Encoding != LinearPCM {
		return fmt.Errorf("unsupported encoding %s", f.Encoding)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	if f.BitDepth() != 16 {
		return fmt.Errorf("unsupported bit depth %d", f.BitDepth())
	}
	return nil
}

// BytesPerSecond is the raw PCM data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth() / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit/%s", f.SampleRate, f.Channels, f.BitDepth(), f.Encoding)
}
