package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mlesyk/gradpipe/app/cfg"
	"github.com/mlesyk/gradpipe/app/database"
	"github.com/mlesyk/gradpipe/app/queue"
	"github.com/mlesyk/gradpipe/app/scrape"
	"github.com/mlesyk/gradpipe/app/sources"
)

var ErrUnknownTaskKind = errors.New("unknown task kind")

var _ queue.Dispatcher = (*Registry)(nil)

// Registry resolves task messages to handlers and runs each one inside a
// fresh database transaction. Repositories are bound to that transaction, so
// a failing task leaves no partial rows and no advanced watermark.
type Registry struct {
	db              *database.DB
	defaultMaxPages int
	sourceEnabled   bool
	newExtractor    func() Extractor
}

func NewRegistry(db *database.DB, profile *sources.SourceConfig, httpClient *http.Client) *Registry {
	return &Registry{
		db:              db,
		defaultMaxPages: cfg.Get().MaxPages,
		sourceEnabled:   profile.Settings.Enabled,
		newExtractor: func() Extractor {
			return scrape.NewScraper(profile, httpClient)
		},
	}
}

// taskBuilder constructs a task with repositories bound to q, which is the
// per-message transaction at dispatch time.
type taskBuilder func(q database.Querier) TaskInterface

// Dispatch routes one message. The kind is resolved before any database work,
// so an unknown kind never opens a transaction; a resolved task commits only
// when it returns without error, and any failure rolls everything back.
func (r *Registry) Dispatch(ctx context.Context, msg queue.TaskMessage) error {
	// A disabled source profile drops scrape tasks without touching the
	// database; the message is still acknowledged.
	if msg.Kind == queue.KindScrapeNewData && !r.sourceEnabled {
		slog.Warn("Scrape source disabled, skipping task")
		return nil
	}

	build, err := r.resolve(msg)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	task := build(tx)
	task.Start()

	if err := task.Execute(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Rollback failed", "type", string(task.GetType()), "id", task.GetID(), "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *Registry) resolve(msg queue.TaskMessage) (taskBuilder, error) {
	switch msg.Kind {
	case queue.KindScrapeNewData:
		payload, err := queue.ScrapePayloadFrom(msg)
		if err != nil {
			return nil, err
		}
		maxPages := payload.MaxPages
		if maxPages <= 0 {
			maxPages = r.defaultMaxPages
		}
		return func(q database.Querier) TaskInterface {
			return NewScrapeTask(maxPages, payload.Since, r.newExtractor(),
				database.NewAdmissionRepository(q), database.NewWatermarkRepository(q))
		}, nil

	case queue.KindRecomputeAnalytics:
		return func(q database.Querier) TaskInterface {
			return NewRecomputeTask(database.NewAdmissionRepository(q),
				database.NewWatermarkRepository(q))
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskKind, string(msg.Kind))
	}
}
