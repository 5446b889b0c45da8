package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/SteelMorgan/autometrics-agent/internal/clickhouse"
	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/config"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/SteelMorgan/autometrics-agent/internal/metricline"
	"github.com/SteelMorgan/autometrics-agent/internal/offset"
	"github.com/SteelMorgan/autometrics-agent/internal/retry"
	"github.com/SteelMorgan/autometrics-agent/internal/selfmetrics"
	"github.com/SteelMorgan/autometrics-agent/internal/tail"
	"github.com/SteelMorgan/autometrics-agent/internal/translator"
	"github.com/SteelMorgan/autometrics-agent/internal/wake"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/SteelMorgan/autometrics-agent/internal/service"

// Agent follows the metric log and writes translated metrics to out
type Agent struct {
	ID string

	cfg   *config.Config
	out   io.Writer
	clock clock.Clock
	stats *domain.Stats
}

// NewAgent creates a new agent
func NewAgent(cfg *config.Config, out io.Writer) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if out == nil {
		return nil, fmt.Errorf("output writer is required")
	}

	return &Agent{
		ID:    uuid.NewString(),
		cfg:   cfg,
		out:   out,
		clock: clock.Real(),
		stats: &domain.Stats{},
	}, nil
}

// SourcePresent reports whether the configured metric directory and file exist
func SourcePresent(cfg *config.Config) bool {
	if cfg.MetricDir != "" {
		if fi, err := os.Stat(cfg.MetricDir); err != nil || !fi.IsDir() {
			return false
		}
	}
	fi, err := os.Stat(cfg.MetricFile)
	return err == nil && fi.Mode().IsRegular()
}

// Run reads lines until ctx is cancelled. Cancellation is a clean stop and
// returns nil; any other returned error is fatal.
func (a *Agent) Run(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", a.ID),
		attribute.String("file.path", a.cfg.MetricFile),
	)

	err := a.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (a *Agent) run(ctx context.Context) error {
	store := a.openStore(ctx)
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close state store")
		}
	}()

	tracker, err := tail.OpenTracker(ctx, a.cfg.MetricFile, a.cfg.StartPosition, tail.CursorOptions{
		Store: store,
		Key:   a.cfg.MetricFile,
		Stats: a.stats,
		Clock: a.clock,
	})
	if err != nil {
		return fmt.Errorf("failed to open metric file: %w", err)
	}

	waiter := a.newWaiter()
	if c, ok := waiter.(io.Closer); ok {
		defer c.Close()
	}

	out := metricline.NewWriter(a.out)
	emitter := selfmetrics.New(out, a.stats, selfmetrics.Options{
		SampleRate:   a.cfg.SampleRate,
		EmitInterval: a.cfg.EmitInterval,
		Clock:        a.clock,
	})
	trans := translator.New(out, a.stats, a.clock)

	var tickErr error
	reader := tail.NewReader(tracker, tail.ReaderOptions{
		PollInterval:   a.cfg.PollInterval,
		CheckThreshold: a.cfg.CheckThreshold,
		Waiter:         waiter,
		Stats:          a.stats,
		OnIdle: func() {
			if err := emitter.Tick(); err != nil && tickErr == nil {
				tickErr = err
			}
		},
	})
	defer reader.Close()

	log.Debug().
		Str("agent_id", a.ID).
		Str("file", tracker.Cursor().Path()).
		Int64("offset", tracker.Cursor().Offset()).
		Msg("Agent started")

	for {
		line, err := reader.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug().Msg("Agent stopping")
				return nil
			}
			return fmt.Errorf("failed to read metric file: %w", err)
		}
		if tickErr != nil {
			return fmt.Errorf("failed to write self metrics: %w", tickErr)
		}

		if err := emitter.Observe(line); err != nil {
			return fmt.Errorf("failed to write self metrics: %w", err)
		}
		if err := trans.Handle(line); err != nil {
			return fmt.Errorf("failed to write metric: %w", err)
		}
	}
}

// openStore opens the bbolt state store, wrapped in the ClickHouse mirror
// when enabled. An unusable state file degrades to memory-only positions.
func (a *Agent) openStore(ctx context.Context) offset.StateStore {
	var store offset.StateStore

	if err := os.MkdirAll(filepath.Dir(a.cfg.StatePath), 0o755); err != nil {
		log.Debug().Err(err).Msg("Failed to create state directory")
	}
	bolt, err := offset.NewBoltDBStore(a.cfg.StatePath)
	if err != nil {
		log.Warn().Err(err).Str("path", a.cfg.StatePath).Msg("State store unavailable, positions will not survive a restart")
		store = offset.NewMemoryStore()
	} else {
		store = bolt
	}

	if !a.cfg.Mirror.Enabled {
		return store
	}

	writer, err := a.openMirror(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Progress mirror unavailable, continuing without it")
		return store
	}
	return offset.NewMirrorStore(store, writer, a.ID, a.cfg.Mirror.Interval, a.clock)
}

func (a *Agent) openMirror(ctx context.Context) (*clickhouse.ProgressWriter, error) {
	m := a.cfg.Mirror
	client, err := clickhouse.NewClient(ctx, clickhouse.Options{
		Host:     m.Host,
		Port:     m.Port,
		Database: m.Database,
		Username: m.Username,
		Password: m.Password,
	}, retry.DefaultConfig())
	if err != nil {
		return nil, err
	}

	writer, err := clickhouse.NewProgressWriter(ctx, client, m.RetentionDays)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return writer, nil
}

func (a *Agent) newWaiter() tail.Waiter {
	fallback := clock.Waiter{Clock: a.clock}
	if !a.cfg.Watch {
		return fallback
	}

	n, err := wake.NewNotifier(a.cfg.MetricFile, a.clock)
	if err != nil {
		log.Warn().Err(err).Msg("File watching unavailable, polling instead")
		return fallback
	}
	return n
}
