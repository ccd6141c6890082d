package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/dental-concierge/internal/app/bootstrap"
	"github.com/wolfman30/dental-concierge/internal/content"
)

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the doctor roster and reply templates into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			if file != "" {
				cfg.SeedFile = file
			}
			ctx := cmd.Context()

			e, err := openBookings(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()
			doctors, err := e.repo.ListDoctors(ctx, "")
			if err != nil {
				return err
			}

			templates := 0
			if cfg.SeedFile != "" {
				db, err := bootstrap.OpenContentDB(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				seed, err := content.LoadSeedFile(cfg.SeedFile)
				if err != nil {
					return err
				}
				if err := seed.Apply(ctx, content.NewPostgresStore(db)); err != nil {
					return err
				}
				for _, locales := range seed.Templates {
					templates += len(locales)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "roster: %d doctors, templates: %d written\n", len(doctors), templates)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file with doctors, templates and agent sections (default SEED_FILE)")
	return cmd
}
