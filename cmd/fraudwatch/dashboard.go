package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/fraudwatch/internal/tui"
	"github.com/Veraticus/fraudwatch/internal/tui/themes"
)

func dashboardCmd() *cobra.Command {
	var (
		theme     string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive live feed and fraud alerts",
		Long: `Open the terminal dashboard. Press l to submit the legitimate template,
f to submit a random fraud example, c to clear the feed and q to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appCfg, appOptions{history: !noHistory})
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(ctx, a.session, tui.WithTheme(themes.GetTheme(theme)))
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "default", "color theme (default, catppuccin-mocha)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record outcomes in the history database")
	return cmd
}
