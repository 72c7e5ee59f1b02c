package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wicara-ai/wicara/pkg/config"
	"github.com/wicara-ai/wicara/pkg/engine"
	"github.com/wicara-ai/wicara/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	dialTo := flag.String("dial_to", "", "destination number for an outbound call after startup")
	dialFrom := flag.String("dial_from", "", "caller ID for the outbound call")
	dialURL := flag.String("dial_url", "", "override voice URL for the outbound call")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config_load_failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg, engine.Options{})
	if err != nil {
		slog.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		slog.Error("engine_start_failed", "error", err)
		os.Exit(1)
	}

	if *dialTo != "" {
		go placeCall(ctx, eng, *dialTo, *dialFrom, *dialURL)
	}

	lr := runner.NewLifecycleRunner(runner.DrainerFunc(eng.Stop), runner.Hooks{
		OnStart: func() {
			slog.Info("wicara_ready",
				"environment", cfg.Environment,
				"stt_provider", cfg.Vendors.STT.Provider,
				"tts_provider", cfg.Vendors.TTS.Provider,
				"llm_provider", cfg.Vendors.LLM.Provider,
				"transport", cfg.Transports.Provider,
			)
		},
		OnStop: func() {
			slog.Info("wicara_stopped")
		},
	}, 30*time.Second)

	if err := lr.Run(ctx); err != nil {
		slog.Error("shutdown_error", "error", err)
		os.Exit(1)
	}
}

func placeCall(ctx context.Context, eng *engine.Engine, to, from, url string) {
	dialer, ok := eng.Dialer()
	if !ok {
		slog.Warn("outbound_dial_unsupported")
		return
	}
	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	callSID, err := dialer.Dial(dctx, to, from, url)
	if err != nil {
		slog.Error("outbound_dial_failed", "to", to, "error", err)
		return
	}
	slog.Info("outbound_call_placed", "call_sid", callSID, "to", to)
}
