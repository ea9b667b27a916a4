package history

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sig-0/ibkrrates/cmd/env"
	"github.com/sig-0/ibkrrates/export"
	"github.com/sig-0/ibkrrates/provider/currencies"
	"github.com/sig-0/ibkrrates/storage/types"
)

// historyCfg wraps the history configuration
type historyCfg struct {
	outputDir string
	rateType  string
	currency  string
	tierLow   string
}

// NewHistoryCmd creates the history command
func NewHistoryCmd() *ffcli.Command {
	cfg := &historyCfg{}

	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "history",
		ShortUsage: "history [flags]",
		LongHelp:   "Prints the rate history of a single currency tier from the published rate files",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *historyCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.outputDir,
		"output-dir",
		"data",
		"the root directory of the published rate files",
	)

	fs.StringVar(
		&c.rateType,
		"type",
		types.RateTypeInterest.String(),
		"the rate table (interest-rates or margin-rates)",
	)

	fs.StringVar(
		&c.currency,
		"currency",
		currencies.USD.String(),
		"the tier currency",
	)

	fs.StringVar(
		&c.tierLow,
		"tier-low",
		"0",
		"the tier lower bound (tiers without one start at 0)",
	)
}

func (c *historyCfg) exec(_ context.Context, _ []string) error {
	return c.run(os.Stdout)
}

// run renders the tier history to the given writer
func (c *historyCfg) run(w io.Writer) error {
	rateType := types.RateType(c.rateType)
	if !rateType.Valid() {
		return fmt.Errorf("invalid type %q", c.rateType)
	}

	tierLow, err := decimal.NewFromString(strings.ReplaceAll(c.tierLow, ",", ""))
	if err != nil {
		return fmt.Errorf("invalid tier lower bound %q: %w", c.tierLow, err)
	}

	query := &types.HistoryQuery{
		TierLow:  tierLow,
		Type:     rateType,
		Currency: types.Currency(strings.ToUpper(c.currency)),
	}

	points, err := export.NewArchive(c.outputDir).History(query)
	if err != nil {
		return fmt.Errorf("unable to read rate history: %w", err)
	}

	if len(points) == 0 {
		return fmt.Errorf(
			"no %s history for %s from %s",
			query.Type,
			query.Currency,
			types.FormatDecimal(query.TierLow),
		)
	}

	render(w, query, points)

	return nil
}

// render writes the history table, with the change from the previous date
func render(w io.Writer, query *types.HistoryQuery, points []*types.HistoryPoint) {
	p := message.NewPrinter(language.English)

	// Title line, above the table
	_, _ = p.Fprintf(
		w,
		"%s %s, tier from %s\n",
		query.Currency,
		query.Type,
		formatAmount(p, query.TierLow),
	)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "Rate (%)", "Change"})

	for i, point := range points {
		change := ""

		if i > 0 {
			diff := point.Rate.Sub(points[i-1].Rate)

			switch {
			case diff.IsPositive():
				change = "+" + types.FormatDecimal(diff)
			case diff.IsNegative():
				change = types.FormatDecimal(diff)
			default:
				change = "="
			}
		}

		t.AppendRow(table.Row{
			point.Date.Format(types.DateFormat),
			types.FormatDecimal(point.Rate),
			change,
		})
	}

	t.AppendFooter(table.Row{"", "", p.Sprintf("%d dates", len(points))})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

// formatAmount renders the tier bound with thousands separators
func formatAmount(p *message.Printer, d decimal.Decimal) string {
	if d.IsInteger() {
		return p.Sprintf("%d", d.IntPart())
	}

	return p.Sprintf("%v", d.InexactFloat64())
}
