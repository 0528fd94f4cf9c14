package bellhop

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/satriadi/bellhop/pkg/configutil"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/driver/script"
	"github.com/satriadi/bellhop/pkg/driver/twilio"
	"github.com/satriadi/bellhop/pkg/respond"
	"github.com/satriadi/bellhop/pkg/stt"
	"github.com/satriadi/bellhop/pkg/stt/deepgram"
	"github.com/satriadi/bellhop/pkg/stt/execstt"
	"github.com/satriadi/bellhop/pkg/tts"
	"github.com/satriadi/bellhop/pkg/tts/elevenlabs"
	"github.com/satriadi/bellhop/pkg/tts/exectts"
)

type DriverFactory func(settings map[string]any) (driver.CallDriver, error)
type TranscriberFactory func(cfg Config) (stt.Transcriber, error)
type SpeakerFactory func(cfg Config, logger *slog.Logger) (tts.Speaker, error)
type ResponderFactory func(settings map[string]any) (respond.Responder, error)

// Registry maps provider names from the config to backend constructors.
type Registry struct {
	drivers     map[string]DriverFactory
	transcriber map[string]TranscriberFactory
	speakers    map[string]SpeakerFactory
	responders  map[string]ResponderFactory
}

func NewRegistry() *Registry {
	return &Registry{
		drivers:     make(map[string]DriverFactory),
		transcriber: make(map[string]TranscriberFactory),
		speakers:    make(map[string]SpeakerFactory),
		responders:  make(map[string]ResponderFactory),
	}
}

func (r *Registry) RegisterDriver(name string, factory DriverFactory) {
	r.drivers[key(name)] = factory
}

func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.transcriber[key(name)] = factory
}

func (r *Registry) RegisterSpeaker(name string, factory SpeakerFactory) {
	r.speakers[key(name)] = factory
}

func (r *Registry) RegisterResponder(name string, factory ResponderFactory) {
	r.responders[key(name)] = factory
}

func (r *Registry) BuildDriver(cfg Config) (driver.CallDriver, error) {
	fn := r.drivers[key(cfg.Driver.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("call driver not registered: %s", cfg.Driver.Provider)
	}
	return fn(cfg.Driver.Settings)
}

func (r *Registry) BuildTranscriber(cfg Config) (stt.Transcriber, error) {
	fn := r.transcriber[key(cfg.STT.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", cfg.STT.Provider)
	}
	return fn(cfg)
}

func (r *Registry) BuildSpeaker(cfg Config, logger *slog.Logger) (tts.Speaker, error) {
	fn := r.speakers[key(cfg.TTS.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", cfg.TTS.Provider)
	}
	return fn(cfg, logger)
}

func (r *Registry) BuildResponder(cfg Config) (respond.Responder, error) {
	name := cfg.Responder.Provider
	if name == "" {
		name = "static"
	}
	fn := r.responders[key(name)]
	if fn == nil {
		return nil, fmt.Errorf("responder not registered: %s", name)
	}
	return fn(cfg.Responder.Settings)
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultRegistry registers every built-in backend.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterDriver("script", func(settings map[string]any) (driver.CallDriver, error) {
		return script.FromSettings(settings)
	})
	r.RegisterDriver("twilio", func(settings map[string]any) (driver.CallDriver, error) {
		return twilio.FromSettings(settings)
	})

	r.RegisterTranscriber("deepgram", func(cfg Config) (stt.Transcriber, error) {
		return deepgram.FromSettings(cfg.STT.Settings)
	})
	r.RegisterTranscriber("exec", func(cfg Config) (stt.Transcriber, error) {
		return execstt.FromSettings(cfg.STT.Settings)
	})

	r.RegisterSpeaker("elevenlabs", func(cfg Config, logger *slog.Logger) (tts.Speaker, error) {
		// play_tool belongs to the local playback half, not the
		// ElevenLabs API; split it out before the schema check.
		playTool := cfg.Audio.Tool
		settings := make(map[string]any, len(cfg.TTS.Settings))
		for k, v := range cfg.TTS.Settings {
			if key(k) == "play_tool" {
				if s, ok := v.(string); ok && s != "" {
					playTool = s
				}
				continue
			}
			settings[k] = v
		}
		synth, err := elevenlabs.FromSettings(settings)
		if err != nil {
			return nil, err
		}
		player, err := exectts.NewPlayer(exectts.Config{
			Tool:   playTool,
			Device: cfg.Audio.MicDevice,
		})
		if err != nil {
			return nil, err
		}
		return tts.NewSynthSpeaker(synth, player, logger), nil
	})
	r.RegisterSpeaker("exec", func(cfg Config, logger *slog.Logger) (tts.Speaker, error) {
		settings := make(map[string]any, len(cfg.TTS.Settings)+1)
		for k, v := range cfg.TTS.Settings {
			settings[k] = v
		}
		if _, ok := settings["device"]; !ok && cfg.Audio.MicDevice != "" {
			settings["device"] = cfg.Audio.MicDevice
		}
		return exectts.FromSettings(settings)
	})

	r.RegisterResponder("static", func(settings map[string]any) (respond.Responder, error) {
		var cfg struct {
			Replies []string `mapstructure:"replies"`
		}
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return respond.NewStatic(cfg.Replies...), nil
	})
	r.RegisterResponder("http", func(settings map[string]any) (respond.Responder, error) {
		return respond.HTTPFromSettings(settings)
	})

	return r
}
