package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satriadi/bellhop/pkg/bellhop"
	"github.com/satriadi/bellhop/pkg/logging"
	"github.com/satriadi/bellhop/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	dialTo := flag.String("dial", "", "place one outgoing call to this target, then exit")
	flag.Parse()

	cfg, err := bellhop.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config_load_failed", "path", *configPath, "error", err.Error())
		os.Exit(1)
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)

	engine, err := bellhop.NewEngine(cfg, bellhop.DefaultRegistry(), logger)
	if err != nil {
		logger.Error("engine_build_failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lr := runner.NewLifecycleRunner(engine, runner.Hooks{
		OnStart: func() {
			if err := engine.Start(ctx); err != nil {
				logger.Error("engine_start_failed", "error", err.Error())
				cancel()
			}
		},
	}, 15*time.Second)

	if *dialTo != "" {
		go func() {
			session, err := engine.Run(ctx, *dialTo)
			if err != nil {
				logger.Error("dial_failed", "target", *dialTo, "error", err.Error())
			} else {
				logger.Info("call_complete", "call_id", session.ID)
			}
			cancel()
		}()
	}

	if err := lr.Run(ctx); err != nil {
		logger.Error("shutdown_error", "error", err.Error())
		os.Exit(1)
	}
}
