package main

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/catalog"
	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/config"
	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/request"
	"github.com/Veraticus/fraudwatch/internal/simulation"
	"github.com/Veraticus/fraudwatch/internal/storage"
)

// app bundles what every submitting command needs.
type app struct {
	store   *storage.SQLiteStorage
	feed    *feed.Feed
	session *simulation.Session
}

type appOptions struct {
	manual  bool
	history bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := slog.Default()

	b, err := request.NewBuilder(cfg.Request, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request settings")
	}
	cat, err := catalog.Load(cfg.Catalog.FraudExamplesPath)
	if err != nil {
		return nil, err
	}
	dashboard, err := classifier.New(cfg.DashboardClient(), classifier.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dashboard classifier")
	}

	a := &app{feed: feed.New(feed.WithLogger(logger))}
	sessOpts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithSubmissionTimeout(cfg.Session.SubmissionTimeout),
	}

	if opts.manual {
		manual, manualErr := classifier.New(cfg.ManualClient(), classifier.WithLogger(logger))
		if manualErr != nil {
			return nil, errors.Wrap(manualErr, "failed to create manual classifier")
		}
		sessOpts = append(sessOpts, simulation.WithManualClassifier(manual))
	}

	if opts.history {
		store, openErr := storage.Open(ctx, cfg.Database.Path)
		if openErr != nil {
			return nil, errors.Wrap(openErr, "failed to open history database")
		}
		a.store = store
		sessOpts = append(sessOpts, simulation.WithRecorder(store))
	}

	a.session, err = simulation.New(ctx, a.feed, b, cat, dashboard, sessOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close stops in-flight submissions and closes the history database.
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close history database", "error", err)
		}
	}
}
