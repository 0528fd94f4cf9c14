package bellhop

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Audio         AudioConfig         `mapstructure:"audio"`
	Driver        ProviderConfig      `mapstructure:"driver"`
	STT           STTConfig           `mapstructure:"stt"`
	TTS           ProviderConfig      `mapstructure:"tts"`
	Responder     ProviderConfig      `mapstructure:"responder"`
	Call          CallConfig          `mapstructure:"call"`
	Watcher       WatcherConfig       `mapstructure:"watcher"`
	Control       ControlConfig       `mapstructure:"control"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

// ProviderConfig selects a pluggable backend by name with free-form
// settings the backend validates itself.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type AudioConfig struct {
	// Tool is the device utility used for both routing subcommands and
	// raw capture.
	Tool           string  `mapstructure:"tool"`
	OutputDevice   string  `mapstructure:"output_device"`
	CaptureDevice  string  `mapstructure:"capture_device"`
	MicDevice      string  `mapstructure:"mic_device"`
	AggregateName  string  `mapstructure:"aggregate_name"`
	SampleRate     int     `mapstructure:"sample_rate"`
	GainDb         float64 `mapstructure:"gain_db"`
	SilenceLevel   float64 `mapstructure:"silence_level"`
	SilenceHoldMS  int     `mapstructure:"silence_hold_ms"`
	MinUtteranceMS int     `mapstructure:"min_utterance_ms"`
	MaxUtteranceS  int     `mapstructure:"max_utterance_seconds"`
}

type STTConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
	// SampleRate is the rate the converter expects; segments are
	// resampled to it before transcription.
	SampleRate int `mapstructure:"sample_rate"`
}

type CallConfig struct {
	Greeting          string   `mapstructure:"greeting"`
	SuppressGreeting  bool     `mapstructure:"suppress_greeting"`
	ResponseMode      string   `mapstructure:"response_mode"`
	MaxDurationSec    int      `mapstructure:"max_duration_seconds"`
	ConnectTimeoutSec int      `mapstructure:"connect_timeout_seconds"`
	ExitPhrases       []string `mapstructure:"exit_phrases"`
	RepeatPrompt      string   `mapstructure:"repeat_prompt"`
	SignalPollMS      int      `mapstructure:"signal_poll_ms"`
}

type WatcherConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	PollIntervalSec int      `mapstructure:"poll_interval_seconds"`
	TrustedCallers  []string `mapstructure:"trusted_callers"`
}

type ControlConfig struct {
	Addr string `mapstructure:"addr"`
}

type ObservabilityConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("audio.aggregate_name", "bellhop-call-tap")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.gain_db", 0.0)
	v.SetDefault("audio.silence_level", 0.015)
	v.SetDefault("audio.silence_hold_ms", 1500)
	v.SetDefault("audio.min_utterance_ms", 500)
	v.SetDefault("audio.max_utterance_seconds", 30)
	v.SetDefault("stt.sample_rate", 16000)
	v.SetDefault("responder.provider", "static")
	v.SetDefault("call.response_mode", "voice")
	v.SetDefault("call.max_duration_seconds", 600)
	v.SetDefault("call.connect_timeout_seconds", 45)
	v.SetDefault("call.signal_poll_ms", 1500)
	v.SetDefault("watcher.enabled", false)
	v.SetDefault("watcher.poll_interval_seconds", 5)
	v.SetDefault("control.addr", "127.0.0.1:8085")
	v.SetDefault("observability.artifacts_dir", "artifacts")
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Audio.Tool) == "" {
		return fmt.Errorf("audio.tool is required")
	}
	if strings.TrimSpace(c.Audio.OutputDevice) == "" {
		return fmt.Errorf("audio.output_device is required")
	}
	if strings.TrimSpace(c.Audio.CaptureDevice) == "" {
		return fmt.Errorf("audio.capture_device is required")
	}
	if strings.TrimSpace(c.Driver.Provider) == "" {
		return fmt.Errorf("driver.provider is required")
	}
	if strings.TrimSpace(c.STT.Provider) == "" {
		return fmt.Errorf("stt.provider is required")
	}
	if strings.TrimSpace(c.TTS.Provider) == "" {
		return fmt.Errorf("tts.provider is required")
	}
	switch strings.TrimSpace(c.Call.ResponseMode) {
	case "", "voice", "text":
	default:
		return fmt.Errorf("call.response_mode must be voice or text")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Driver.Settings = expandSettings(cfg.Driver.Settings)
	cfg.STT.Settings = expandSettings(cfg.STT.Settings)
	cfg.TTS.Settings = expandSettings(cfg.TTS.Settings)
	cfg.Responder.Settings = expandSettings(cfg.Responder.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
