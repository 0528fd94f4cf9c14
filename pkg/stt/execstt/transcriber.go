// Package execstt shells out to a local speech-to-text command that takes a
// WAV file and prints the transcript:
//
//	<tool> [args...] <file.wav>
package execstt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/satriadi/bellhop/pkg/audio"
	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/stt"
)

type Config struct {
	Tool  string   `mapstructure:"tool"`
	Args  []string `mapstructure:"args"`
	Model string   `mapstructure:"model"`
}

// SettingsSchema validates the provider settings map.
var SettingsSchema = configutil.Schema{
	Required: []string{"tool"},
	Optional: []string{"args", "model"},
}

type Transcriber struct {
	cfg Config
}

func New(cfg Config) (*Transcriber, error) {
	if err := configutil.RequireString(cfg.Tool, "stt.settings.tool"); err != nil {
		return nil, err
	}
	return &Transcriber{cfg: cfg}, nil
}

// FromSettings builds the transcriber from a free-form settings map.
func FromSettings(settings map[string]any) (*Transcriber, error) {
	if err := configutil.ValidateSettings(settings, SettingsSchema); err != nil {
		return nil, err
	}
	var cfg Config
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

func (t *Transcriber) Name() string { return "exec" }

func (t *Transcriber) Transcribe(ctx context.Context, u capture.Utterance) (string, error) {
	dir, err := os.MkdirTemp("", "bellhop-stt-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, u.ID+".wav")
	if err := os.WriteFile(path, audio.EncodeWAV(u.Samples, u.SampleRate), 0o600); err != nil {
		return "", err
	}

	args := append([]string(nil), t.cfg.Args...)
	if t.cfg.Model != "" {
		args = append(args, "--model", t.cfg.Model)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, t.cfg.Tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", t.cfg.Tool, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
