// Package script drives the call application through an external UI
// automation command. The command owns all knowledge of the application's
// windows and notification panel; this driver only runs subcommands and
// parses their output:
//
//	<tool> dial <target>
//	<tool> answer
//	<tool> hangup
//	<tool> state                  -> none|connecting|connected|ended
//	<tool> incoming               -> {"handle":"...","display":"..."} or empty
//	<tool> send-text <target> <text>
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/errorsx"
)

type Config struct {
	Tool      string `mapstructure:"tool"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// SettingsSchema validates the driver settings map from the config file.
var SettingsSchema = configutil.Schema{
	Required: []string{"tool"},
	Optional: []string{"timeout_ms"},
}

type Driver struct {
	cfg     Config
	timeout time.Duration
}

func New(cfg Config) (*Driver, error) {
	if err := configutil.RequireString(cfg.Tool, "driver.settings.tool"); err != nil {
		return nil, err
	}
	timeout := time.Duration(configutil.IntValue(cfg.TimeoutMS, 15000)) * time.Millisecond
	return &Driver{cfg: cfg, timeout: timeout}, nil
}

// FromSettings builds the driver from a free-form settings map.
func FromSettings(settings map[string]any) (*Driver, error) {
	if err := configutil.ValidateSettings(settings, SettingsSchema); err != nil {
		return nil, err
	}
	var cfg Config
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

func (d *Driver) Name() string { return "script" }

func (d *Driver) Dial(ctx context.Context, target string) error {
	if strings.TrimSpace(target) == "" {
		return errorsx.Wrap(fmt.Errorf("empty dial target"), errorsx.ReasonDial)
	}
	if _, err := d.run(ctx, "dial", target); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonDial)
	}
	return nil
}

func (d *Driver) Answer(ctx context.Context) error {
	if _, err := d.run(ctx, "answer"); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonAnswer)
	}
	return nil
}

func (d *Driver) Hangup(ctx context.Context) error {
	if _, err := d.run(ctx, "hangup"); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonHangup)
	}
	return nil
}

func (d *Driver) State(ctx context.Context) (driver.LinkState, error) {
	out, err := d.run(ctx, "state")
	if err != nil {
		return driver.LinkNone, errorsx.Wrap(err, errorsx.ReasonDriverPoll)
	}
	switch strings.ToLower(strings.TrimSpace(out)) {
	case "connecting", "ringing", "dialing":
		return driver.LinkConnecting, nil
	case "connected", "in-call", "active":
		return driver.LinkConnected, nil
	case "ended", "disconnected":
		return driver.LinkEnded, nil
	default:
		return driver.LinkNone, nil
	}
}

func (d *Driver) Incoming(ctx context.Context) (driver.IncomingCall, bool, error) {
	out, err := d.run(ctx, "incoming")
	if err != nil {
		return driver.IncomingCall{}, false, errorsx.Wrap(err, errorsx.ReasonDriverPoll)
	}
	out = strings.TrimSpace(out)
	if out == "" || out == "none" {
		return driver.IncomingCall{}, false, nil
	}
	var call struct {
		Handle  string `json:"handle"`
		Display string `json:"display"`
	}
	if err := json.Unmarshal([]byte(out), &call); err != nil {
		return driver.IncomingCall{}, false, errorsx.Wrap(fmt.Errorf("parse incoming: %w", err), errorsx.ReasonDriverPoll)
	}
	if call.Handle == "" {
		return driver.IncomingCall{}, false, nil
	}
	return driver.IncomingCall{Handle: call.Handle, Display: call.Display}, true, nil
}

func (d *Driver) SendText(ctx context.Context, target, text string) error {
	_, err := d.run(ctx, "send-text", target, text)
	return err
}

func (d *Driver) run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, d.cfg.Tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s %s: %s", d.cfg.Tool, args[0], msg)
	}
	return stdout.String(), nil
}

var (
	_ driver.CallDriver     = (*Driver)(nil)
	_ driver.IncomingPoller = (*Driver)(nil)
	_ driver.TextSender     = (*Driver)(nil)
)
