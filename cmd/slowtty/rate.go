package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
)

type rateOptions struct {
	speed   int
	bits    int
	parity  bool
	twoStop bool
	ticks   int
	count   int
	output  string
}

func newRateCmd() *cobra.Command {
	o := &rateOptions{}
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Show the per-tick character quotas for a line configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.ticks <= 0 {
				return fmt.Errorf("--ticks must be positive, got %d", o.ticks)
			}
			if o.count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", o.count)
			}
			cfg := pacing.LineConfig{
				Speed:       o.speed,
				CharSize:    o.bits,
				Parity:      o.parity,
				TwoStopBits: o.twoStop,
			}
			rep := pacing.Summarize(cfg, o.ticks, o.count)

			switch strings.ToLower(strings.TrimSpace(o.output)) {
			case "", "table":
				return renderRateTable(cmd.OutOrStdout(), cfg, rep)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			default:
				return fmt.Errorf("unsupported output format: %s", o.output)
			}
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&o.speed, "speed", 9600, "line speed in bits per second")
	flags.IntVar(&o.bits, "bits", 8, "character size, 5..8")
	flags.BoolVar(&o.parity, "parity", false, "parity bit enabled")
	flags.BoolVar(&o.twoStop, "two-stop", false, "two stop bits")
	flags.IntVar(&o.ticks, "ticks", 25, "ticks per second")
	flags.IntVar(&o.count, "count", 10, "number of ticks to show")
	flags.StringVarP(&o.output, "output", "o", "table", "output format: table or json")
	return cmd
}

// newTable returns a rounded table whose footers keep their case.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func renderRateTable(w io.Writer, requested pacing.LineConfig, rep pacing.Report) error {
	summary := newTable()
	summary.AppendHeader(table.Row{"Line", "Bits/char", "Ticks/s", "Chars/tick", "Chars/s"})
	summary.AppendRow(table.Row{
		rep.Config.String(),
		rep.BitsPerChar,
		rep.TicksPerSecond,
		fmt.Sprintf("%d/%d", rep.Num, rep.Den),
		fmt.Sprintf("%.2f", rep.CharsPerSecond),
	})
	if rep.Config != requested {
		summary.AppendFooter(table.Row{"requested " + requested.String(), "", "", "", ""})
	}

	quotas := newTable()
	quotas.AppendHeader(table.Row{"Tick", "Quota", "Cumulative"})
	cumulative := 0
	for i, q := range rep.Quotas {
		cumulative += q
		quotas.AppendRow(table.Row{i + 1, q, cumulative})
	}
	if len(rep.Quotas) > 0 {
		quotas.AppendFooter(table.Row{
			"",
			fmt.Sprintf("%.2f ± %.2f", rep.Mean, rep.StdDev),
			fmt.Sprintf("min %d max %d", rep.Min, rep.Max),
		})
	}

	if _, err := fmt.Fprintln(w, summary.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, quotas.Render())
	return err
}
