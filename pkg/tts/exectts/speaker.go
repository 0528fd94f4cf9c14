// Package exectts delivers reply audio through local commands.
//
// Speaker runs a say-style tool that synthesizes and plays in one step:
//
//	<tool> [args...] --device <device> <text>
//
// Player pipes an already synthesized clip to a playback tool:
//
//	<tool> [args...] --device <device> <file>
package exectts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/tts"
)

type Config struct {
	Tool   string   `mapstructure:"tool"`
	Args   []string `mapstructure:"args"`
	Device string   `mapstructure:"device"`
	Voice  string   `mapstructure:"voice"`
}

// SettingsSchema validates the provider settings map.
var SettingsSchema = configutil.Schema{
	Required: []string{"tool"},
	Optional: []string{"args", "device", "voice"},
}

// Speaker synthesizes and plays in one external invocation.
type Speaker struct {
	cfg Config
}

func NewSpeaker(cfg Config) (*Speaker, error) {
	if err := configutil.RequireString(cfg.Tool, "tts.settings.tool"); err != nil {
		return nil, err
	}
	return &Speaker{cfg: cfg}, nil
}

// FromSettings builds the speaker from a free-form settings map.
func FromSettings(settings map[string]any) (*Speaker, error) {
	if err := configutil.ValidateSettings(settings, SettingsSchema); err != nil {
		return nil, err
	}
	var cfg Config
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return NewSpeaker(cfg)
}

func (s *Speaker) Name() string { return "exec" }

func (s *Speaker) Speak(ctx context.Context, text string) error {
	args := append([]string(nil), s.cfg.Args...)
	if s.cfg.Voice != "" {
		args = append(args, "--voice", s.cfg.Voice)
	}
	if s.cfg.Device != "" {
		args = append(args, "--device", s.cfg.Device)
	}
	args = append(args, text)
	return run(ctx, s.cfg.Tool, args)
}

// Player plays synthesized clips through an external playback tool. The
// clip is written to a temp file because most playback tools want a path.
type Player struct {
	cfg Config
}

func NewPlayer(cfg Config) (*Player, error) {
	if err := configutil.RequireString(cfg.Tool, "tts.settings.tool"); err != nil {
		return nil, err
	}
	return &Player{cfg: cfg}, nil
}

func (p *Player) Play(ctx context.Context, a tts.Audio) error {
	ext := a.Format
	if ext == "" {
		ext = "wav"
	}
	dir, err := os.MkdirTemp("", "bellhop-play-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return err
	}

	args := append([]string(nil), p.cfg.Args...)
	if p.cfg.Device != "" {
		args = append(args, "--device", p.cfg.Device)
	}
	args = append(args, path)
	return run(ctx, p.cfg.Tool, args)
}

func run(ctx context.Context, tool string, args []string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s: %s", tool, msg)
	}
	return nil
}

var (
	_ tts.Speaker = (*Speaker)(nil)
	_ tts.Player  = (*Player)(nil)
)
