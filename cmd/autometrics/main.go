package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/SteelMorgan/autometrics-agent/internal/config"
	"github.com/SteelMorgan/autometrics-agent/internal/observability"
	"github.com/SteelMorgan/autometrics-agent/internal/service"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run executes the agent with args and writes metrics to stdout.
// It returns the process exit code.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage of autometrics:\n%s", config.Usage())
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFile)

	if !service.SourcePresent(cfg) {
		log.Debug().
			Str("dir", cfg.MetricDir).
			Str("file", cfg.MetricFile).
			Msg("Metric source not found, nothing to do")
		return 0
	}

	agent, err := service.NewAgent(cfg, stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}

	shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "autometrics-agent",
		ServiceVersion: version,
		InstanceID:     agent.ID,
		Endpoint:       cfg.Tracing.Endpoint,
		Protocol:       cfg.Tracing.Protocol,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Debug().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	log.Debug().
		Str("version", version).
		Str("agent_id", agent.ID).
		Msg("Starting autometrics agent")

	if err := agent.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}
	return 0
}
