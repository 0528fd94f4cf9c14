package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/errorsx"
)

// HTTPConfig points at an external reply service. The service receives the
// caller's text plus the conversation so far and returns the agent's reply.
type HTTPConfig struct {
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// HTTPSettingsSchema validates the responder settings map.
var HTTPSettingsSchema = configutil.Schema{
	Required: []string{"url"},
	Optional: []string{"auth_token", "timeout_ms"},
}

type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if err := configutil.RequireString(cfg.URL, "responder.settings.url"); err != nil {
		return nil, err
	}
	timeout := time.Duration(configutil.IntValue(cfg.TimeoutMS, 10000)) * time.Millisecond
	return &HTTP{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

// HTTPFromSettings builds the responder from a free-form settings map.
func HTTPFromSettings(settings map[string]any) (*HTTP, error) {
	if err := configutil.ValidateSettings(settings, HTTPSettingsSchema); err != nil {
		return nil, err
	}
	var cfg HTTPConfig
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return NewHTTP(cfg)
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Respond(ctx context.Context, input string, history []Turn) (string, error) {
	body, err := json.Marshal(map[string]any{
		"input":   input,
		"history": history,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.AuthToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRespond)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errorsx.Wrap(
			fmt.Errorf("responder: %s: %s", resp.Status, bytes.TrimSpace(detail)),
			errorsx.ReasonRespond)
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRespond)
	}
	return out.Reply, nil
}

var _ Responder = (*HTTP)(nil)
