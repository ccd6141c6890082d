// Package cli implements the concierge command line: a terminal chat with
// the orchestration engine plus roster and seeding helpers.
package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var (
	envFile  string
	logLevel string

	// loaded in PersistentPreRunE
	cfg *appconfig.Config
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concierge",
		Short: "Dental clinic concierge tools",
		Long:  "concierge talks to the bilingual clinic assistant from a terminal and manages its roster and reply templates.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			} else {
				_ = godotenv.Load()
			}
			cfg = appconfig.Load()
			level := logLevel
			if level == "" {
				level = "warn"
			}
			log = logging.NewWithWriter(level, cmd.ErrOrStderr())
			return cfg.Validate()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newDoctorsCmd())
	cmd.AddCommand(newSeedCmd())

	return cmd
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
