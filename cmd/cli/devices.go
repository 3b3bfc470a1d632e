package main

import (
	"fmt"
	"sort"

	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/audio"
)

type device struct {
	input  audio.InputDevice
	output audio.OutputDevice
	close  func()
}

// devices maps a --device name to its constructor. Builds with the
// portaudio tag add "portaudio".
var devices = map[string]func() (*device, error){
	"arecord": func() (*device, error) {
		d := audio.CommandDevice{}
		return &device{input: d, output: d, close: func() {}}, nil
	},
	"silence": func() (*device, error) {
		d := audio.SilenceDevice{}
		return &device{input: d, output: d, close: func() {}}, nil
	},
}

func deviceNames() []string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openDevice(name string) (*device, error) {
	open, ok := devices[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q (have %v)", name, deviceNames())
	}
	return open()
}
