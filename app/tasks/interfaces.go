package tasks

import (
	"context"

	"github.com/mlesyk/gradpipe/app/queue"
	"github.com/mlesyk/gradpipe/app/scrape"
)

// Extractor produces entries from the source site. One instance is good for
// one run; the registry constructs a fresh one per scrape task.
type Extractor interface {
	Run(ctx context.Context, maxPages int) ([]scrape.Entry, error)
}

var _ Extractor = (*scrape.Scraper)(nil)

// TaskPublisher enqueues task messages. Satisfied by queue.Publisher; faked
// in scheduler tests.
type TaskPublisher interface {
	Publish(ctx context.Context, kind queue.TaskKind, payload any) error
}
