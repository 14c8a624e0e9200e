// Package main implements discoveryctl, a command line client for the
// Discovery service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/discovery-go/internal/auth"
	"github.com/RegistryAccord/discovery-go/internal/config"
	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/event"
	"github.com/RegistryAccord/discovery-go/internal/metrics"
	"github.com/RegistryAccord/discovery-go/internal/storage"
	"github.com/RegistryAccord/discovery-go/internal/telemetry"
	"github.com/RegistryAccord/discovery-go/internal/transport"
)

// buildVersion is set with -ldflags at release time.
var buildVersion = "dev"

// Globals
var (
	dryRun bool
	trace  bool
)

// app holds what the commands share. It is built lazily so commands that
// only describe requests never dial NATS or Postgres.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	journal   storage.Journal
	publisher event.Publisher
	transport *transport.HTTP
	client    *discovery.Client
}

var current *app

// Root is the main discoveryctl command.
var Root = &cobra.Command{
	Use:   "discoveryctl",
	Short: "Command line client for the Discovery document search service",
	Long: `discoveryctl builds and sends Discovery requests.

Configuration comes from DISCOVERY_* environment variables, optionally
loaded from .env and .env.local. DISCOVERY_VERSION_DATE is required.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}

		// Configure structured logging for the application
		logLevel := slog.LevelInfo
		if cfg.IsDev() {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)

		traceOut := io.Discard
		if trace {
			traceOut = cmd.ErrOrStderr()
		}
		if _, err := telemetry.InitTracer("discoveryctl", buildVersion, traceOut); err != nil {
			return err
		}

		current = &app{cfg: cfg, logger: logger, metrics: metrics.NewMetrics()}
		return nil
	},
}

func init() {
	flags := Root.PersistentFlags()
	flags.BoolVar(&dryRun, "dry-run", false, "Print the request descriptor instead of sending it")
	flags.BoolVar(&trace, "trace", false, "Write exchange spans to stderr")
}

// openJournal opens the exchange journal once.
func (a *app) openJournal(ctx context.Context) (storage.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	j, err := storage.Open(ctx, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	a.journal = j
	return j, nil
}

// newClient wires the client. With dry-run no transport is created.
func (a *app) newClient(ctx context.Context) (*discovery.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg := discovery.Config{
		Username:    a.cfg.Username,
		Password:    a.cfg.Password,
		URL:         a.cfg.URL,
		APIVersion:  a.cfg.APIVersion,
		VersionDate: a.cfg.VersionDate,
	}
	opts := []discovery.Option{discovery.WithLogger(a.logger), discovery.WithMetrics(a.metrics)}
	if dryRun {
		c, err := discovery.New(cfg, nil, opts...)
		if err != nil {
			return nil, err
		}
		a.client = c
		return c, nil
	}

	authn, err := auth.FromCredentials(a.cfg.Username, a.cfg.Password, a.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	journal, err := a.openJournal(ctx)
	if err != nil {
		return nil, err
	}
	a.publisher = event.NewPublisher(a.cfg.NATSURL)
	a.transport = transport.NewHTTP(a.cfg.Timeout,
		transport.WithAuth(authn),
		transport.WithLogger(a.logger),
		transport.WithMetrics(a.metrics),
		transport.WithPublisher(a.publisher),
		transport.WithJournal(journal),
	)
	c, err := discovery.New(cfg, a.transport, opts...)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// close releases connections and flushes spans.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.ShutdownTracer(ctx)

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", "error", err)
		}
	}
	if a.journal != nil {
		a.journal.Close()
	}
}

func main() {
	err := Root.ExecuteContext(context.Background())
	if current != nil {
		current.close()
	}
	if err != nil {
		os.Exit(1)
	}
}
