package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/dental-concierge/internal/bookings"
)

func newDoctorsCmd() *cobra.Command {
	var branch, date, clock string

	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List doctors, optionally filtered by availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openBookings(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			var doctors []bookings.Doctor
			if strings.TrimSpace(date) == "" {
				doctors, err = e.repo.ListDoctors(ctx, branch)
			} else {
				doctors, err = e.service.AvailableDoctors(ctx, bookings.AvailabilityQuery{Branch: branch, Date: date, Time: clock})
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBRANCH\tDAYS\tHOURS")
			for _, d := range doctors {
				days := make([]string, 0, len(d.Window.Days))
				for _, wd := range d.Window.Days {
					days = append(days, wd.String()[:3])
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\n", d.Name, d.Branch, strings.Join(days, ","), d.Window.Open, d.Window.Close)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "clinic branch")
	cmd.Flags().StringVar(&date, "date", "", "appointment date (YYYY-MM-DD, today, tomorrow)")
	cmd.Flags().StringVar(&clock, "time", "", "appointment time such as 10:30 or 4 pm")
	return cmd
}
