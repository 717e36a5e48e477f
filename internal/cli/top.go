package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rtm-python/est/internal/config"
	"github.com/rtm-python/est/internal/domain"
	"github.com/rtm-python/est/internal/rating"
	"github.com/spf13/cobra"
)

// NewTopCmd prints a leaderboard.
func NewTopCmd(configPath *string) *cobra.Command {
	var (
		period    string
		extension string
		limit     int
		offset    int
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the top crammers for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(cmd.Context(), *configPath, cmd.OutOrStdout(), rating.Query{
				Extension: extension,
				Limit:     limit,
				Offset:    offset,
			}, period)
		},
	}
	cmd.Flags().StringVar(&period, "period", "today", "today, 7-days, 30-days or all-days")
	cmd.Flags().StringVar(&extension, "extension", "", "only count sessions of this extension")
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func runTop(ctx context.Context, configPath string, out io.Writer, q rating.Query, period string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	q.Window, err = rating.PeriodWindow(period, time.Now(), time.Local)
	if err != nil {
		return err
	}
	service, cleanup, err := buildService(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := service.TopCrammers(ctx, q)
	if err != nil {
		return err
	}
	return printCrammers(out, rows)
}

func printCrammers(out io.Writer, rows []domain.Crammer) error {
	if out == nil {
		out = os.Stdout
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tSESSIONS\tCORRECT\tANSWERS\tCRAMMERS")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%.2f\n",
			row.Rank, row.Label, row.Sessions, row.CorrectCount, row.AnswerCount, row.Crammers)
	}
	return w.Flush()
}
