package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/tui/themes"
)

func simulateCmd() *cobra.Command {
	var (
		legit     int
		fraud     int
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Submit a burst of synthetic transactions",
		Example: `  fraudwatch simulate --legit 5 --fraud 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if legit < 0 || fraud < 0 {
				return errors.New("--legit and --fraud cannot be negative")
			}
			if legit+fraud == 0 {
				return errors.New("nothing to simulate: set --legit and/or --fraud")
			}

			a, err := newApp(cmd.Context(), appCfg, appOptions{history: !noHistory})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			runBurst(out, a, legit, fraud)
			printFeed(out, a.feed)
			return nil
		},
	}

	cmd.Flags().IntVar(&legit, "legit", 1, "number of legitimate transactions")
	cmd.Flags().IntVar(&fraud, "fraud", 1, "number of fraud examples")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record outcomes in the history database")
	return cmd
}

func runBurst(out io.Writer, a *app, legit, fraud int) {
	total := legit + fraud
	events, cancel := a.feed.Subscribe(total)
	defer cancel()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classificando transações...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(out); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		trackProgress(events, a.feed, bar)
	}()

	submit := func(n int, fn func() (feed.Handle, error)) {
		for range n {
			if _, err := fn(); err != nil {
				slog.Error("Submission failed", "error", err)
			}
		}
	}
	submit(legit, a.session.SimulateLegit)
	submit(fraud, a.session.SimulateFraud)

	a.session.Wait()
	cancel()
	<-done
	_ = bar.Finish()
}

// trackProgress sets bar to the number of settled entries whenever the feed
// changes. Reading Stats keeps the count right when events are dropped.
func trackProgress(events <-chan feed.Event, f *feed.Feed, bar *progressbar.ProgressBar) {
	for range events {
		s := f.Stats()
		if err := bar.Set(s.Approved + s.Flagged + s.Errored); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func printFeed(out io.Writer, f *feed.Feed) {
	theme := themes.Default
	section := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

	fmt.Fprintln(out, section.Render("Feed de Transações"))
	for _, e := range f.Entries() {
		fmt.Fprintln(out, "  "+theme.ForEntry(e).Render(e.Describe()))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, section.Render("Alertas de Fraude"))
	alerts := f.Alerts()
	if len(alerts) == 0 {
		fmt.Fprintln(out, "  "+theme.Faint.Render("Nenhum alerta de fraude."))
	}
	for _, e := range alerts {
		risk := model.RiskLow
		if e.Result != nil {
			risk = e.Result.RiskLevel
		}
		fmt.Fprintf(out, "  %s %s\n", theme.ForEntry(e).Render(e.Describe()), theme.ForRisk(risk).Render(string(risk)))
	}

	s := f.Stats()
	fmt.Fprintf(out, "\nTotal %d · aprovadas %d · alertas %d · erros %d\n", s.Total, s.Approved, s.Flagged, s.Errored)
}
