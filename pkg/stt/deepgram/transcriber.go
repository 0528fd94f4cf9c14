package deepgram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/satriadi/bellhop/pkg/audio"
	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/stt"

	listenapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

// SettingsSchema validates the provider settings map.
var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "language"},
}

// Transcriber sends finished segments to the Deepgram prerecorded REST API.
type Transcriber struct {
	cfg Config
	api *listenapi.Client
}

func New(cfg Config) (*Transcriber, error) {
	if err := configutil.RequireString(cfg.APIKey, "stt.settings.api_key"); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	rest := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{cfg: cfg, api: listenapi.New(rest)}, nil
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

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, u capture.Utterance) (string, error) {
	wav := audio.EncodeWAV(u.Samples, u.SampleRate)
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: true,
	}
	res, err := t.api.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcribe: %w", err)
	}
	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return res.Results.Channels[0].Alternatives[0].Transcript, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
