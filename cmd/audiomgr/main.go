package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Note: No .env file found, using system environment variables")
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "audiomgr",
		Short:        "Voice device audio daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := loadSettings(v)
			logger := logging.NewConsole(s.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, s, logger)
		},
	}
	if err := setupFlags(cmd, v); err != nil {
		panic(err)
	}
	return cmd
}
