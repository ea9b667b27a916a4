package chart

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/ibkrrates/cmd/env"
	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/storage/types"
)

// chartCfg wraps the chart configuration
type chartCfg struct {
	outputDir    string
	assetsDir    string
	skipMargin   bool
	skipInterest bool
}

// NewChartCmd creates the chart command
func NewChartCmd() *ffcli.Command {
	cfg := &chartCfg{}

	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "chart",
		ShortUsage: "chart [flags]",
		LongHelp:   "Renders SVG rate history charts for every currency of the published rate files",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *chartCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.outputDir,
		"output-dir",
		"data",
		"the root directory of the published rate files",
	)

	fs.StringVar(
		&c.assetsDir,
		"assets-dir",
		"assets",
		"the directory receiving the SVG charts",
	)

	fs.BoolVar(
		&c.skipMargin,
		"skip-margin",
		false,
		"skip the margin rate charts",
	)

	fs.BoolVar(
		&c.skipInterest,
		"skip-interest",
		false,
		"skip the interest rate charts",
	)
}

func (c *chartCfg) exec(_ context.Context, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return c.run(os.Stdout, logger, time.Now())
}

// run renders the selected charts, and lists the written paths
func (c *chartCfg) run(w io.Writer, logger *slog.Logger, now time.Time) error {
	archive := export.NewArchive(c.outputDir, export.WithLogger(logger))

	rateTypes := make([]types.RateType, 0, 2)

	if !c.skipMargin {
		rateTypes = append(rateTypes, types.RateTypeMargin)
	}

	if !c.skipInterest {
		rateTypes = append(rateTypes, types.RateTypeInterest)
	}

	for _, rateType := range rateTypes {
		paths, err := archive.BuildCharts(c.assetsDir, rateType, now)
		if err != nil {
			return fmt.Errorf("unable to build %s charts: %w", rateType, err)
		}

		for _, path := range paths {
			if _, err = fmt.Fprintln(w, path); err != nil {
				return err
			}
		}
	}

	return nil
}
