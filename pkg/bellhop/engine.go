// Package bellhop assembles the call agent from configuration: audio
// routing, the call-app driver, capture, transcription, reply generation,
// dispatch, the incoming-call watcher, and the control surface.
package bellhop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/satriadi/bellhop/pkg/call"
	"github.com/satriadi/bellhop/pkg/capture"
	"github.com/satriadi/bellhop/pkg/control"
	"github.com/satriadi/bellhop/pkg/dispatch"
	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/orchestrator"
	"github.com/satriadi/bellhop/pkg/redact"
	"github.com/satriadi/bellhop/pkg/route"
	"github.com/satriadi/bellhop/pkg/signal"
	"github.com/satriadi/bellhop/pkg/stt"
	"github.com/satriadi/bellhop/pkg/turn"
	"github.com/satriadi/bellhop/pkg/watcher"
)

type Engine struct {
	cfg      Config
	logger   *slog.Logger
	registry *call.Registry
	gate     turn.Gate
	drv      driver.CallDriver
	orch     *orchestrator.Orchestrator
	watch    *watcher.Watcher
	control  *control.Server

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(cfg Config, reg *Registry, logger *slog.Logger) (*Engine, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	logger = logging.NewComponentLogger(logger, "engine")

	redact.SetEnabled(cfg.Privacy.RedactPII)

	drv, err := reg.BuildDriver(cfg)
	if err != nil {
		return nil, err
	}
	transcriber, err := reg.BuildTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	speaker, err := reg.BuildSpeaker(cfg, logger)
	if err != nil {
		return nil, err
	}
	responder, err := reg.BuildResponder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := call.NewStore(cfg.Observability.ArtifactsDir)
	if err != nil {
		return nil, err
	}

	gate := turn.NewGate()
	registry := call.NewRegistry()

	routes := route.NewManager(route.NewExecController(cfg.Audio.Tool), route.Config{
		AggregateName: cfg.Audio.AggregateName,
		OutputDevice:  cfg.Audio.OutputDevice,
		CaptureDevice: cfg.Audio.CaptureDevice,
	}, logger)

	sig := signal.New(drv, time.Duration(cfg.Call.SignalPollMS)*time.Millisecond, logger)

	recorder := capture.NewSession(&capture.ExecSource{
		Tool:       cfg.Audio.Tool,
		Device:     cfg.Audio.CaptureDevice,
		SampleRate: cfg.Audio.SampleRate,
	}, gate, capture.Config{
		SampleRate:   cfg.Audio.SampleRate,
		GainDb:       cfg.Audio.GainDb,
		SilenceLevel: cfg.Audio.SilenceLevel,
		SilenceHold:  time.Duration(cfg.Audio.SilenceHoldMS) * time.Millisecond,
		MinUtterance: time.Duration(cfg.Audio.MinUtteranceMS) * time.Millisecond,
		MaxUtterance: time.Duration(cfg.Audio.MaxUtteranceS) * time.Second,
	}, logger)

	pipeline := stt.NewPipeline(transcriber, cfg.STT.SampleRate, logger)

	texter, _ := drv.(driver.TextSender)
	dispatcher := dispatch.New(speaker, gate, texter, logger)

	orch := orchestrator.New(orchestrator.Config{
		Greeting:         cfg.Call.Greeting,
		SuppressGreeting: cfg.Call.SuppressGreeting,
		ResponseMode:     cfg.Call.ResponseMode,
		MaxCallDuration:  time.Duration(cfg.Call.MaxDurationSec) * time.Second,
		ConnectTimeout:   time.Duration(cfg.Call.ConnectTimeoutSec) * time.Second,
		ExitPhrases:      cfg.Call.ExitPhrases,
		RepeatPrompt:     cfg.Call.RepeatPrompt,
	}, routes, sig, recorder, pipeline, responder, dispatcher, gate, registry, store, logger)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		gate:     gate,
		drv:      drv,
		orch:     orch,
	}

	if poller, ok := drv.(driver.IncomingPoller); ok {
		e.watch = watcher.New(watcher.Config{
			PollInterval:   time.Duration(cfg.Watcher.PollIntervalSec) * time.Second,
			TrustedCallers: cfg.Watcher.TrustedCallers,
		}, poller, orch, registry, logger)
	} else if cfg.Watcher.Enabled {
		return nil, errors.New("watcher enabled but driver cannot report incoming calls")
	}

	e.control = control.NewServer(control.Config{Addr: cfg.Control.Addr}, e.watch, e, registry, logger)
	orch.OnSession(func(s *call.Session) {
		id := s.ID
		s.AddObserver(func(entry call.Entry) {
			e.control.Publish(id, entry)
		})
	})
	return e, nil
}

// Run implements the control surface's dialer. Calls run under the engine
// context so shutdown cancels them, while still honoring the caller's own
// cancellation.
func (e *Engine) Run(ctx context.Context, target string) (*call.Session, error) {
	callCtx, cancel := context.WithCancel(e.runContext())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return e.orch.Run(callCtx, target)
}

// Watcher returns the incoming-call watcher, nil when the driver cannot
// poll for incoming calls.
func (e *Engine) Watcher() *watcher.Watcher { return e.watch }

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx, e.cancel = runCtx, cancel
	e.mu.Unlock()

	if err := e.control.Start(runCtx); err != nil {
		return err
	}
	if e.watch != nil {
		if e.cfg.Watcher.Enabled {
			e.watch.Enable()
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.watch.Run(runCtx)
		}()
	}
	e.logger.Info("engine_started",
		"driver", e.drv.Name(),
		"watcher", e.watch != nil,
		"control_addr", e.cfg.Control.Addr)
	return nil
}

// Drain cancels any live call and waits for its teardown to release the
// audio route before the process exits.
func (e *Engine) Drain() error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	deadline := time.Now().Add(8 * time.Second)
	for e.registry.Active() != nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	e.wg.Wait()
	err := e.control.Stop()
	if e.registry.Active() != nil {
		return errors.New("a call was still tearing down at drain timeout")
	}
	return err
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

var _ control.Dialer = (*Engine)(nil)
