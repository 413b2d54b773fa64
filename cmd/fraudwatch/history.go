package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/storage"
)

func historyCmd() *cobra.Command {
	var (
		limit    int
		status   string
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded classification outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := storage.Open(ctx, appCfg.Database.Path)
			if err != nil {
				return errors.Wrap(err, "failed to open history database")
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Warn("Failed to close history database", "error", closeErr)
				}
			}()

			out := cmd.OutOrStdout()
			if clearAll {
				n, clearErr := store.ClearEntries(ctx)
				if clearErr != nil {
					return clearErr
				}
				fmt.Fprintf(out, "Removed %d entries\n", n)
				return nil
			}

			entries, err := store.ListEntries(ctx, storage.ListOptions{
				Status: model.FeedStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No recorded entries")
				return nil
			}
			return writeHistory(cmd, entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&status, "status", "", "only show entries with this status (approved, flagged, errored)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all recorded entries")
	return cmd
}

func writeHistory(cmd *cobra.Command, entries []model.FeedEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			slog.Error("failed to flush table writer", "error", flushErr)
		}
	}()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("Submitted"),
		headerStyle.Render("Source"),
		headerStyle.Render("Status"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Score"),
		headerStyle.Render("Detail")); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 19),
		strings.Repeat("─", 6),
		strings.Repeat("─", 8),
		strings.Repeat("─", 12),
		strings.Repeat("─", 7),
		strings.Repeat("─", 20)); err != nil {
		return errors.Wrap(err, "failed to write separator")
	}

	for _, e := range entries {
		score, detail := "-", ""
		if e.Result != nil {
			score = model.FormatPercent(e.Result.FraudScore)
			detail = string(e.Result.RiskLevel)
		}
		if e.Status == model.StatusErrored {
			detail = e.Error
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.Status,
			model.FormatAmount(e.DisplayAmount),
			score,
			detail); err != nil {
			return errors.Wrap(err, "failed to write history row")
		}
	}
	return nil
}
