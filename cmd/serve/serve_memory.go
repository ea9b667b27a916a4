package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/ibkrrates/cmd/env"
	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/storage"
	"github.com/sig-0/ibkrrates/storage/memory"
	"github.com/sig-0/ibkrrates/storage/types"
)

type serveMemoryCfg struct {
	rootCfg *serveCfg
}

// newServeMemoryCmd creates the serve memory command.
func newServeMemoryCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveMemoryCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("memory", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "memory",
		ShortUsage: "serve memory [flags]",
		LongHelp:   "Serves the ibkrrates backend, using an in-memory datastore seeded from the rate files",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveMemoryCfg) exec(ctx context.Context, _ []string) error {
	if err := c.rootCfg.readConfig(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Create an in-memory store
	store := memory.NewStorage()

	loaded, err := preload(ctx, export.NewArchive(c.rootCfg.outputDir), store)
	if err != nil {
		return fmt.Errorf("unable to load rate files, %w", err)
	}

	logger.Info(
		"loaded published rate files",
		"dir", c.rootCfg.outputDir,
		"snapshots", loaded,
	)

	return c.rootCfg.run(ctx, logger, store)
}

// preload saves every published snapshot into the store
func preload(ctx context.Context, archive *export.Archive, store storage.Storage) (int, error) {
	loaded := 0

	for _, rateType := range []types.RateType{types.RateTypeInterest, types.RateTypeMargin} {
		snapshots, err := archive.Snapshots(rateType)
		if err != nil {
			return loaded, err
		}

		for _, snapshot := range snapshots {
			if err = store.SaveSnapshot(ctx, snapshot); err != nil {
				return loaded, err
			}

			loaded++
		}
	}

	return loaded, nil
}
