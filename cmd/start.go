package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/wemokit/wemoscrape/pkg/metrics"
	"github.com/wemokit/wemoscrape/pkg/promserver"
	"github.com/wemokit/wemoscrape/pkg/scheduler"
	"github.com/wemokit/wemoscrape/pkg/wemo"
)

func init() {
	deviceFlags(startCmd.Flags())
	startCmd.MarkFlagRequired("address")
	startCmd.Flags().Uint16P("port", "p", 8080, "port to bind the metrics server")
	startCmd.Flags().IP("bind-addr", net.IPv6zero, "local ip address to bind the metrics server to")
	startCmd.Flags().Duration("interval", scheduler.DefaultInterval, "time between device polls")
	startCmd.Flags().String("metrics-path", promserver.DefaultMetricsPath, "HTTP path serving the exposition format")
	startCmd.Flags().String("namespace", promserver.DefaultNamespace, "namespace prefix for metric names")

	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "run the exporter daemon: poll the device on an interval and serve prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		l := log.Ctx(ctx)

		interval := viper.GetDuration("interval")
		timeout := viper.GetDuration("device-timeout")
		if timeout >= interval {
			l.Warn().
				Dur("device_timeout", timeout).
				Dur("interval", interval).
				Msg("device-timeout should be below the poll interval; slow polls will skip ticks")
		}

		client := wemo.NewClient(viper.GetString("address"), wemo.WithTimeout(timeout))
		reg := metrics.NewRegistry()
		mapper := metrics.NewMapper()
		poll := func(ctx context.Context) error {
			r, err := client.Query(ctx)
			if err != nil {
				reg.PublishError(err)
				return err
			}
			reg.Publish(mapper.Map(r))
			return nil
		}
		sched := scheduler.New(interval, poll)

		ps := promserver.NewServer(ctx, reg,
			promserver.WithNamespace(viper.GetString("namespace")))
		mux := http.NewServeMux()
		mux.Handle(viper.GetString("metrics-path"), ps)
		hs := http.Server{
			Handler: mux,
			Addr:    net.JoinHostPort(viper.GetString("bind-addr"), strconv.Itoa(viper.GetInt("port"))),
		}

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			sched.Run(ctx)
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hs.Shutdown(sCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			l.Info().
				Str("addr", hs.Addr).
				Str("device", viper.GetString("address")).
				Dur("interval", interval).
				Msg("starting metrics server")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		return eg.Wait()
	},
}
