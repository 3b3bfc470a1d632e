package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// CommandDevice drives the ALSA command line tools: arecord for capture and
// aplay for playback, exchanging raw little-endian PCM over pipes.
type CommandDevice struct {
	RecordCommand string // defaults to "arecord"
	PlayCommand   string // defaults to "aplay"
}

func (d CommandDevice) recordCommand() string {
	if d.RecordCommand != "" {
		return d.RecordCommand
	}
	return "arecord"
}

func (d CommandDevice) playCommand() string {
	if d.PlayCommand != "" {
		return d.PlayCommand
	}
	return "aplay"
}

func rawArgs(f Format) []string {
	return []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(f.SampleRate),
		"-c", strconv.Itoa(f.Channels),
	}
}

func (d CommandDevice) OpenInput(f Format) (Input, error) {
	path, err := exec.LookPath(d.recordCommand())
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", d.recordCommand(), err)
	}
	return &commandInput{cmd: exec.Command(path, rawArgs(f)...)}, nil
}

func (d CommandDevice) OpenOutput(f Format) (Output, error) {
	path, err := exec.LookPath(d.playCommand())
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", d.playCommand(), err)
	}
	return &commandOutput{cmd: exec.Command(path, rawArgs(f)...)}, nil
}

type commandInput struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	raw    []byte

	waitOnce sync.Once
	waitErr  error
}

func (in *commandInput) Start() error {
	stdout, err := in.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	in.stdout = stdout
	return in.cmd.Start()
}

func (in *commandInput) Read(buf []int16) (int, error) {
	if need := len(buf) * 2; cap(in.raw) < need {
		in.raw = make([]byte, need)
	}
	raw := in.raw[:len(buf)*2]
	n, err := io.ReadFull(in.stdout, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return samples, err
}

// Stop interrupts arecord so it flushes and exits. Read drains the pipe
// until arecord closes it.
func (in *commandInput) Stop() error {
	if in.cmd.Process == nil {
		return nil
	}
	if err := in.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = in.cmd.Process.Kill()
	}
	return nil
}

func (in *commandInput) Close() error {
	if in.cmd.Process != nil {
		_ = in.cmd.Process.Kill()
		in.wait()
	}
	return nil
}

func (in *commandInput) wait() {
	in.waitOnce.Do(func() { in.waitErr = in.cmd.Wait() })
}

type commandOutput struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	raw   []byte

	waitOnce sync.Once
	waitErr  error
}

func (out *commandOutput) Start() error {
	stdin, err := out.cmd.StdinPipe()
	if err != nil {
		return err
	}
	out.stdin = stdin
	return out.cmd.Start()
}

func (out *commandOutput) Write(buf []int16) error {
	if need := len(buf) * 2; cap(out.raw) < need {
		out.raw = make([]byte, need)
	}
	raw := out.raw[:len(buf)*2]
	for i, v := range buf {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	_, err := out.stdin.Write(raw)
	return err
}

// Stop closes aplay's input and waits for it to drain.
func (out *commandOutput) Stop() error {
	if out.stdin != nil {
		out.stdin.Close()
	}
	if out.cmd.Process == nil {
		return nil
	}
	out.waitOnce.Do(func() { out.waitErr = out.cmd.Wait() })
	return out.waitErr
}

func (out *commandOutput) Close() error {
	if out.cmd.Process != nil {
		_ = out.cmd.Process.Kill()
		out.waitOnce.Do(func() { out.waitErr = out.cmd.Wait() })
	}
	return nil
}
