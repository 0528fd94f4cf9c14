package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Source produces the raw capture stream: mono 16-bit little-endian PCM at
// the session's sample rate.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ExecSource spawns a recorder subprocess that writes raw PCM from the
// routed capture device to stdout:
//
//	<tool> capture <device> <rate>
type ExecSource struct {
	Tool       string
	Device     string
	SampleRate int
}

func (s *ExecSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if strings.TrimSpace(s.Tool) == "" {
		return nil, fmt.Errorf("capture tool not configured")
	}
	cmd := exec.CommandContext(ctx, s.Tool, "capture", s.Device, strconv.Itoa(s.SampleRate))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &procReader{ReadCloser: stdout, cmd: cmd}, nil
}

type procReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *procReader) Close() error {
	err := p.ReadCloser.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return err
}

// ReaderSource wraps a fixed reader, used by tests to inject synthetic PCM.
type ReaderSource struct {
	R io.Reader
}

func (s *ReaderSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(s.R), nil
}
