package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/tui"
)

func newFillCommand(flags *globalFlags) *cobra.Command {
	var (
		locale   string
		session  string
		attempts int
	)
	cmd := &cobra.Command{
		Use:   "fill <form>",
		Short: "Fill and submit a form from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			filler := tui.NewFiller(a.engine,
				tui.WithLocale(locale),
				tui.WithSessionID(session),
				tui.WithAttempts(attempts),
				tui.WithTheme(tui.Theme{ErrorPrefix: "! ", InfoPrefix: "> "}),
				tui.WithLogger(logger),
			)
			resp, err := filler.Fill(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Redirect != nil && resp.Redirect.URL != "" {
				fmt.Fprintf(out, "Submitted. Continue at %s\n", resp.Redirect.URL)
				return nil
			}
			fmt.Fprintln(out, "Submitted.")
			return nil
		},
	}
	cmd.Flags().StringVar(&locale, "locale", "en", "message locale")
	cmd.Flags().StringVar(&session, "session", "terminal", "session id for stored values")
	cmd.Flags().IntVar(&attempts, "attempts", 3, "submit rounds before giving up")
	return cmd
}
