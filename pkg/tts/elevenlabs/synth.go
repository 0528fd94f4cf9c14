// Package elevenlabs synthesizes reply audio through the ElevenLabs batch
// text-to-speech REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/resilience"
	"github.com/satriadi/bellhop/pkg/tts"
)

const defaultBaseURL = "https://api.elevenlabs.io"

type Config struct {
	APIKey          string  `mapstructure:"api_key"`
	VoiceID         string  `mapstructure:"voice_id"`
	ModelID         string  `mapstructure:"model_id"`
	BaseURL         string  `mapstructure:"base_url"`
	Stability       float64 `mapstructure:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost"`
}

// SettingsSchema validates the provider settings map.
var SettingsSchema = configutil.Schema{
	Required: []string{"api_key", "voice_id"},
	Optional: []string{"model_id", "base_url", "stability", "similarity_boost"},
}

type Synthesizer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*Synthesizer, error) {
	if err := configutil.RequireString(cfg.APIKey, "tts.settings.api_key"); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(cfg.VoiceID, "tts.settings.voice_id"); err != nil {
		return nil, err
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.Stability = configutil.FloatValue(cfg.Stability, 0.5)
	cfg.SimilarityBoost = configutil.FloatValue(cfg.SimilarityBoost, 0.8)
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FromSettings builds the synthesizer from a free-form settings map.
func FromSettings(settings map[string]any) (*Synthesizer, error) {
	if err := configutil.ValidateSettings(settings, SettingsSchema); err != nil {
		return nil, err
	}
	var cfg Config
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        s.cfg.Stability,
			"similarity_boost": s.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return tts.Audio{}, err
	}

	url := s.cfg.BaseURL + "/v1/text-to-speech/" + s.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return tts.Audio{}, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Audio{}, fmt.Errorf("elevenlabs synth: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs read body: %w", err)
	}
	return tts.Audio{Data: data, Format: "mp3"}, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
