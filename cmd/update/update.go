package update

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/peterbourgon/ff/v3/fftoml"

	"github.com/sig-0/ibkrrates/cmd/env"
	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/ingest"
	"github.com/sig-0/ibkrrates/provider/currencies"
	"github.com/sig-0/ibkrrates/provider/ibkr"
	"github.com/sig-0/ibkrrates/storage/types"
)

const (
	defaultOutputDir = "data"
	defaultTimeout   = time.Second * 30

	typeAll = "all"
)

var errInvalidType = errors.New("invalid type (must be interest-rates, margin-rates or all)")

// updateCfg wraps the update configuration
type updateCfg struct {
	outputDir    string
	asOf         string
	rateType     string
	interestHTML string
	marginHTML   string
	userAgent    string
	readmePath   string
	configPath   string

	minRows int
	timeout time.Duration
}

// NewUpdateCmd creates the update command
func NewUpdateCmd() *ffcli.Command {
	cfg := &updateCfg{}

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "update",
		ShortUsage: "update [flags]",
		LongHelp:   "Fetches the pricing pages, and publishes the validated rate CSV files",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),

			// Allow using a TOML config file
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(fftoml.Parser),
		},
	}
}

func (c *updateCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.outputDir,
		"output-dir",
		defaultOutputDir,
		"the root directory of the published rate files",
	)

	fs.StringVar(
		&c.asOf,
		"as-of",
		"",
		"the snapshot date (YYYY-MM-DD), defaults to today in US/Eastern",
	)

	fs.StringVar(
		&c.rateType,
		"type",
		typeAll,
		"the rate table to refresh (interest-rates, margin-rates or all)",
	)

	fs.StringVar(
		&c.interestHTML,
		"interest-html",
		"",
		"a local interest rates HTML page to use instead of fetching it",
	)

	fs.StringVar(
		&c.marginHTML,
		"margin-html",
		"",
		"a local margin rates HTML page to use instead of fetching it",
	)

	fs.IntVar(
		&c.minRows,
		"min-rows",
		export.DefaultMinRows,
		"the minimum number of rows of a valid rate file",
	)

	fs.DurationVar(
		&c.timeout,
		"timeout",
		defaultTimeout,
		"the page request timeout",
	)

	fs.StringVar(
		&c.userAgent,
		"user-agent",
		ibkr.DefaultUserAgent,
		"the User-Agent of page requests",
	)

	fs.StringVar(
		&c.readmePath,
		"readme",
		"",
		"the README to point at the new rate files, defaults to the README next to the output directory",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to a TOML file with flag values, if any",
	)
}

func (c *updateCfg) exec(ctx context.Context, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	_, err := c.run(ctx, logger, time.Now())

	return err
}

// run refreshes the selected rate tables, and returns the published file paths
func (c *updateCfg) run(
	ctx context.Context,
	logger *slog.Logger,
	now time.Time,
) (map[types.RateType]string, error) {
	rateTypes, err := parseRateTypes(c.rateType)
	if err != nil {
		return nil, err
	}

	// Every table of a run shares the same date
	asOf := ibkr.Today(now)

	if c.asOf != "" {
		asOf, err = time.Parse(types.DateFormat, c.asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid as-of date %q: %w", c.asOf, err)
		}
	}

	archive := export.NewArchive(
		c.outputDir,
		export.WithLogger(logger),
		export.WithRules(export.Rules{
			MinRows:          c.minRows,
			RequiredCurrency: currencies.USD,
		}),
	)

	providers := make([]ingest.Provider, 0, len(rateTypes))

	for _, rateType := range rateTypes {
		source, err := c.sourceFor(rateType)
		if err != nil {
			return nil, err
		}

		p, err := ibkr.NewProvider(rateType, source, ibkr.WithAsOf(asOf))
		if err != nil {
			return nil, fmt.Errorf("unable to create provider: %w", err)
		}

		providers = append(providers, p)
	}

	snapshots, err := ingest.Run(ctx, archive, providers...)
	if err != nil {
		return nil, err
	}

	written := make(map[types.RateType]string, len(snapshots))

	for _, snapshot := range snapshots {
		path := archive.Path(snapshot.Type, snapshot.Date)
		written[snapshot.Type] = path

		logger.Info(
			"rate table updated",
			"type", snapshot.Type,
			"date", snapshot.Date.Format(types.DateFormat),
			"rows", len(snapshot.Records),
			"path", path,
		)
	}

	// The README links both tables, so it only follows a full refresh
	interestPath, hasInterest := written[types.RateTypeInterest]
	marginPath, hasMargin := written[types.RateTypeMargin]

	if !hasInterest || !hasMargin {
		return written, nil
	}

	readmePath, err := c.readme()
	if err != nil {
		return nil, err
	}

	if err := export.UpdateReadme(readmePath, interestPath, marginPath); err != nil {
		return nil, fmt.Errorf("unable to update README: %w", err)
	}

	return written, nil
}

// sourceFor returns the page source of the rate type,
// preferring a local HTML file when one is given
func (c *updateCfg) sourceFor(rateType types.RateType) (ibkr.Source, error) {
	local := c.interestHTML
	if rateType == types.RateTypeMargin {
		local = c.marginHTML
	}

	if local != "" {
		return ibkr.NewFileSource(local), nil
	}

	url, err := ibkr.URLFor(rateType)
	if err != nil {
		return nil, err
	}

	return ibkr.NewHTTPSource(url, c.timeout, c.userAgent), nil
}

// readme returns the README path, next to the output directory by default
func (c *updateCfg) readme() (string, error) {
	if c.readmePath != "" {
		return c.readmePath, nil
	}

	root, err := filepath.Abs(c.outputDir)
	if err != nil {
		return "", fmt.Errorf("unable to resolve output directory: %w", err)
	}

	return filepath.Join(filepath.Dir(root), "README.md"), nil
}

// parseRateTypes resolves the type flag, in refresh order
func parseRateTypes(v string) ([]types.RateType, error) {
	if v == typeAll {
		return []types.RateType{
			types.RateTypeInterest,
			types.RateTypeMargin,
		}, nil
	}

	rateType := types.RateType(v)
	if !rateType.Valid() {
		return nil, fmt.Errorf("%w: %q", errInvalidType, v)
	}

	return []types.RateType{rateType}, nil
}
