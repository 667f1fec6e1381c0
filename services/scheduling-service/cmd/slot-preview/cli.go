package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/slotmeet/libs/config"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
)

var (
	colorDate        = color.New(color.Bold)
	colorAvailable   = color.New(color.FgGreen)
	colorUnavailable = color.New(color.FgWhite, color.Faint)
	colorError       = color.New(color.FgRed)
)

var errInvalidRules = errors.New("rules file has validation errors")

func newRootCmd() *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:   "slot-preview",
		Short: "Preview availability computed from a rules file",
		Long: `slot-preview runs the availability engine on a TOML rules file so a
schedule can be checked without a database or a running service.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.AddCommand(monthCmd(), validateCmd())
	return root
}

func monthCmd() *cobra.Command {
	var (
		rulesPath string
		year      int
		month     int
		tz        string
		nowFlag   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print every day of a month with its open slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadRulesFile(rulesPath)
			if err != nil {
				return err
			}
			loc, err := resolveLocation(tz, f.Timezone)
			if err != nil {
				return err
			}
			now := time.Now()
			if nowFlag != "" {
				if now, err = time.Parse(time.RFC3339, nowFlag); err != nil {
					return fmt.Errorf("--now must be RFC 3339: %w", err)
				}
			}
			local := now.In(loc)
			if year == 0 {
				year = local.Year()
			}
			if month == 0 {
				month = int(local.Month())
			}

			cal, errs := f.calendar(loc)
			if len(errs) > 0 {
				printFieldErrors(cmd.ErrOrStderr(), errs)
				return errInvalidRules
			}
			days, err := cal.Month(year, time.Month(month), now)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(days)
			}
			printMonth(cmd.OutOrStdout(), days)
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "rules.toml", "Path to the TOML rules file")
	cmd.Flags().IntVar(&year, "year", 0, "Year (defaults to the current year)")
	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12 (defaults to the current month)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone of the host (overrides the file)")
	cmd.Flags().StringVar(&nowFlag, "now", "", "Evaluate as if the current time were this RFC 3339 instant")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func validateCmd() *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rules file for format, order and overlap errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadRulesFile(rulesPath)
			if err != nil {
				return err
			}
			rules, errs := availability.PrepareRules(f.Availabilities)
			if len(errs) > 0 {
				printFieldErrors(cmd.ErrOrStderr(), errs)
				return errInvalidRules
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rules OK\n", len(rules))
			for _, r := range availability.SortForDisplay(rules) {
				state := "available"
				if !r.Available {
					state = "unavailable"
				}
				fmt.Fprintf(out, "  %-9s %s-%s %s\n", r.Day.Label(), r.Start, r.End, state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "rules.toml", "Path to the TOML rules file")
	return cmd
}

func resolveLocation(flag, file string) (*time.Location, error) {
	if flag != "" {
		return config.Location(flag, nil)
	}
	return config.Location(file, time.UTC)
}

func printMonth(w io.Writer, days []availability.DayAvailability) {
	for _, d := range days {
		colorDate.Fprintf(w, "%s ", d.Date)
		if !d.IsAvailable {
			colorUnavailable.Fprintln(w, "-")
			continue
		}
		slots := make([]string, 0, len(d.TimeSlots))
		for _, s := range d.TimeSlots {
			slots = append(slots, s.String()[:5])
		}
		colorAvailable.Fprintln(w, strings.Join(slots, " "))
	}
}

func printFieldErrors(w io.Writer, errs []availability.FieldError) {
	for _, e := range errs {
		colorError.Fprintf(w, "%s: %s\n", e.Field(), e.Message())
	}
}
