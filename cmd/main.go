package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/ibkrrates/cmd/chart"
	"github.com/sig-0/ibkrrates/cmd/history"
	"github.com/sig-0/ibkrrates/cmd/serve"
	"github.com/sig-0/ibkrrates/cmd/sql"
	"github.com/sig-0/ibkrrates/cmd/update"
)

func main() {
	fs := flag.NewFlagSet("root", flag.ExitOnError)

	// Create the root command
	cmd := &ffcli.Command{
		ShortUsage: "<sub-command> [flags] [<arg>...]",
		LongHelp:   "Extracts the IBKR Canada interest and margin rate tables",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
	}

	// Add the subcommands
	cmd.Subcommands = []*ffcli.Command{
		update.NewUpdateCmd(),
		history.NewHistoryCmd(),
		chart.NewChartCmd(),
		serve.NewServeCmd(),
		sql.NewSQLCmd(),
	}

	// Load .env, if any, before the flags read the environment
	_ = godotenv.Load()

	if err := cmd.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
