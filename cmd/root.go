package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "wemoscrape",
	Short:         "wemoscrape polls a Wemo Insight smart plug and publishes its power statistics",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("binding flags: %w", err)
		}
		cmd.SetContext(setupLogging(cmd))
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP(
		"debug",
		"d",
		"verbosity: -d for info, -dd for debug (default warn)")
	rootCmd.PersistentFlags().Bool(
		"quiet",
		false,
		"mute all log output below error; useful when piping JSON")

	viper.SetEnvPrefix("WEMOSCRAPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setupLogging installs a console zerolog logger on the command
// context; packages pull it back out with log.Ctx(ctx).
func setupLogging(cmd *cobra.Command) context.Context {
	level := zerolog.WarnLevel
	debug, _ := cmd.Flags().GetCount("debug")
	quiet, _ := cmd.Flags().GetBool("quiet")
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case debug == 1:
		level = zerolog.InfoLevel
	case debug > 1:
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	return logger.WithContext(cmd.Context())
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
