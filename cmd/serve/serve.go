package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/ibkrrates/cmd/env"
	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/ingest"
	"github.com/sig-0/ibkrrates/metrics"
	"github.com/sig-0/ibkrrates/provider/ibkr"
	"github.com/sig-0/ibkrrates/server"
	"github.com/sig-0/ibkrrates/server/config"
	"github.com/sig-0/ibkrrates/storage"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	config *config.Config

	configPath string
	outputDir  string
	userAgent  string
	timeout    time.Duration
	interval   time.Duration
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the ibkrrates backend",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.config.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.StringVar(
		&c.outputDir,
		"output-dir",
		"data",
		"the root directory of the published rate files",
	)

	fs.StringVar(
		&c.userAgent,
		"user-agent",
		ibkr.DefaultUserAgent,
		"the User-Agent sent with page requests",
	)

	fs.DurationVar(
		&c.timeout,
		"timeout",
		time.Second*30,
		"the page request timeout",
	)

	fs.DurationVar(
		&c.interval,
		"interval",
		ibkr.DefaultInterval,
		"the refresh interval of each rate table",
	)
}

// readConfig reads the server configuration, if any
func (c *serveCfg) readConfig() error {
	if c.configPath == "" {
		return nil
	}

	serverCfg, err := config.Read(c.configPath)
	if err != nil {
		return fmt.Errorf("unable to read server config, %w", err)
	}

	c.config = serverCfg

	return nil
}

// run starts the HTTP server and the ingestion service on top of the given store.
// Every ingested snapshot is published to the rate files before it is stored
func (c *serveCfg) run(ctx context.Context, logger *slog.Logger, store storage.Storage) error {
	var (
		m       = metrics.New()
		archive = export.NewArchive(c.outputDir, export.WithLogger(logger))
		sink    = ingest.MultiSink{archive, store}
	)

	providers, err := defaultProviders(c.timeout, c.interval, c.userAgent)
	if err != nil {
		return err
	}

	// Create the ingestion service
	orchestrator := ingest.New(
		sink,
		ingest.WithLogger(logger),
		ingest.WithRecorder(m),
	)

	for _, provider := range providers {
		if err = orchestrator.Register(provider); err != nil {
			return fmt.Errorf("unable to register provider: %w", err)
		}
	}

	// Create the server instance
	s, err := server.New(
		store,
		server.WithLogger(logger),
		server.WithConfig(c.config),
		server.WithMetrics(m.Handler()),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the ingestion service
	group.Go(func() error {
		return orchestrator.Start(gCtx)
	})

	return group.Wait()
}
