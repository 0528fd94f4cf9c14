// Package twilio backs the call driver with the Twilio REST API instead of
// UI automation: dialing creates a call resource, state polling fetches it,
// and hangup completes it. Twilio has no REST verb for accepting a ringing
// call, so answer mode requires the script driver.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callAPI interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
	FetchCall(sid string, params *api.FetchCallParams) (*api.ApiV2010Call, error)
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

type Config struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	VoiceURL   string `mapstructure:"voice_url"`
}

// SettingsSchema validates the driver settings map from the config file.
var SettingsSchema = configutil.Schema{
	Required: []string{"account_sid", "auth_token", "from_number"},
	Optional: []string{"voice_url"},
}

type Driver struct {
	cfg    Config
	client callAPI

	mu      sync.Mutex
	callSID string
}

func New(cfg Config) (*Driver, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	if err := configutil.RequireString(cfg.FromNumber, "driver.settings.from_number"); err != nil {
		return nil, err
	}
	return &Driver{cfg: cfg}, nil
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

func (d *Driver) Name() string { return "twilio" }

func (d *Driver) Dial(ctx context.Context, target string) error {
	_ = ctx
	if target == "" {
		return errorsx.Wrap(errors.New("empty dial target"), errorsx.ReasonDial)
	}
	params := &api.CreateCallParams{}
	params.SetTo(target)
	params.SetFrom(d.cfg.FromNumber)
	if d.cfg.VoiceURL != "" {
		params.SetUrl(d.cfg.VoiceURL)
	}
	resp, err := d.api().CreateCall(params)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonDial)
	}
	if resp == nil || resp.Sid == nil {
		return errorsx.Wrap(fmt.Errorf("missing call sid"), errorsx.ReasonDial)
	}
	d.mu.Lock()
	d.callSID = *resp.Sid
	d.mu.Unlock()
	return nil
}

func (d *Driver) Answer(ctx context.Context) error {
	return errorsx.Wrap(errors.New("twilio driver cannot answer; use the script driver for incoming calls"), errorsx.ReasonAnswer)
}

func (d *Driver) Hangup(ctx context.Context) error {
	_ = ctx
	sid := d.sid()
	if sid == "" {
		return nil
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := d.api().UpdateCall(sid, params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonHangup)
	}
	return nil
}

func (d *Driver) State(ctx context.Context) (driver.LinkState, error) {
	_ = ctx
	sid := d.sid()
	if sid == "" {
		return driver.LinkNone, nil
	}
	resp, err := d.api().FetchCall(sid, &api.FetchCallParams{})
	if err != nil {
		return driver.LinkNone, errorsx.Wrap(err, errorsx.ReasonDriverPoll)
	}
	if resp == nil || resp.Status == nil {
		return driver.LinkNone, nil
	}
	return mapStatus(*resp.Status), nil
}

func mapStatus(status string) driver.LinkState {
	switch strings.ToLower(status) {
	case "queued", "initiated", "ringing":
		return driver.LinkConnecting
	case "in-progress":
		return driver.LinkConnected
	case "completed", "busy", "failed", "no-answer", "canceled":
		return driver.LinkEnded
	default:
		return driver.LinkNone
	}
}

func (d *Driver) sid() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callSID
}

func (d *Driver) api() callAPI {
	if d.client != nil {
		return d.client
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: d.cfg.AccountSID,
		Password: d.cfg.AuthToken,
	})
	return rest.Api
}

var _ driver.CallDriver = (*Driver)(nil)
