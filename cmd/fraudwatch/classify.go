package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/common"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/request"
	"github.com/Veraticus/fraudwatch/internal/tui/themes"
)

func classifyCmd() *cobra.Command {
	var (
		form      request.Form
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:     "classify",
		Short:   "Classify one transaction entered field by field",
		Example: `  fraudwatch classify --amount 250,75 --hour 3 --day-of-week 6 \
    --merchant-category atm --country BR --city "São Paulo"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appCfg, appOptions{manual: true, history: !noHistory})
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.session.SubmitForm(form)
			if err != nil {
				var verr *request.ValidationError
				if errors.As(err, &verr) {
					return common.NewUserError(common.Describe(verr), err)
				}
				return err
			}
			a.session.Wait()

			entry, ok := a.feed.Get(h)
			if !ok {
				return errors.New("submission disappeared from the feed")
			}
			return printVerdict(cmd, entry)
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.Amount, "amount", "", "transaction amount in reais (required)")
	f.StringVar(&form.Hour, "hour", "", "hour of day, 0-23 (required)")
	f.StringVar(&form.DayOfWeek, "day-of-week", "", "day of week, 0 (Sunday) to 6 (required)")
	f.StringVar(&form.MerchantCategory, "merchant-category", "", "online_retail, physical_store, atm, gas_station, grocery or restaurant (required)")
	f.StringVar(&form.Country, "country", "BR", "country code or name")
	f.StringVar(&form.State, "state", "", "state")
	f.StringVar(&form.City, "city", "", "city")
	f.StringVar(&form.Latitude, "lat", "", "latitude")
	f.StringVar(&form.Longitude, "lon", "", "longitude")
	f.StringVar(&form.DeviceType, "device-type", "", "device type (mobile, desktop, ...)")
	f.StringVar(&form.IPAddress, "ip", "", "device IP address")
	f.StringVar(&form.UserID, "user-id", "", "user identifier")
	f.StringVar(&form.PreviousTransactionsCount, "previous-count", "", "number of previous transactions")
	f.BoolVar(&noHistory, "no-history", false, "do not record the outcome in the history database")
	return cmd
}

func printVerdict(cmd *cobra.Command, e model.FeedEntry) error {
	theme := themes.Default
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, theme.ForEntry(e).Render(e.Describe()))
	if e.Status == model.StatusErrored {
		cause := &classifier.Error{Kind: classifier.Kind(e.ErrorKind), Message: e.Error}
		msg := e.Error
		if common.IsRetryable(cause) {
			msg += " Repita o comando para reenviar a transação."
		}
		return common.NewUserError(msg, cause)
	}

	r := e.Result
	fmt.Fprintf(out, "  Resultado:    %s\n", r.Label)
	fmt.Fprintf(out, "  Prob. fraude: %s\n", model.FormatPercent(r.FraudScore))
	fmt.Fprintf(out, "  Risco:        %s\n", theme.ForRisk(r.RiskLevel).Render(string(r.RiskLevel)))
	fmt.Fprintf(out, "  Confiança:    %s\n", r.Confidence)
	if r.TransactionID != "" {
		fmt.Fprintf(out, "  ID:           %s\n", r.TransactionID)
	}
	return nil
}
