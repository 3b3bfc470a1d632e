//go:build portaudio

package main

import (
	"github.com/himanishpuri/WhisperJar/pkg/logger"
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio/portaudio"
)

func init() {
	devices["portaudio"] = func() (*device, error) {
		d, err := portaudio.New()
		if err != nil {
			return nil, err
		}
		return &device{input: d, output: d, close: func() {
			if err := d.Close(); err != nil {
				logger.Warnf("Terminating portaudio: %v", err)
			}
		}}, nil
	}
}
