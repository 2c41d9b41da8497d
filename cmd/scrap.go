package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wemokit/wemoscrape/pkg/metrics"
	"github.com/wemokit/wemoscrape/pkg/outputter"
	"github.com/wemokit/wemoscrape/pkg/wemo"
)

func init() {
	deviceFlags(scrapCmd.Flags())
	scrapCmd.MarkFlagRequired("address")
	scrapCmd.Flags().StringP("output", "o", "json", "output format: json, min-json, yaml, or log")
	scrapCmd.Flags().Float64P("frequency", "f", 0, "sampling frequency in Hz; 0 queries the device exactly once")

	rootCmd.AddCommand(scrapCmd)
}

var scrapCmd = &cobra.Command{
	Use:     "scrap",
	Aliases: []string{"onescrap"},
	Short:   "query the device and print the mapped metrics to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		out, err := outputter.ByName(viper.GetString("output"))
		if err != nil {
			return err
		}
		client := wemo.NewClient(
			viper.GetString("address"),
			wemo.WithTimeout(viper.GetDuration("device-timeout")))
		mapper := metrics.NewMapper()

		scrapOnce := func(ctx context.Context) error {
			r, err := client.Query(ctx)
			if err != nil {
				return err
			}
			return out(ctx, cmd.OutOrStdout(), mapper.Map(r))
		}

		freq := viper.GetFloat64("frequency")
		if freq <= 0 {
			return scrapOnce(ctx)
		}

		t := time.NewTicker(time.Duration(float64(time.Second) / freq))
		defer t.Stop()
		for {
			if err := scrapOnce(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("scrap failed")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
	},
}
