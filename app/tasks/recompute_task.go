package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlesyk/gradpipe/app/database"
)

// RecomputeTask refreshes planner statistics for the main table and records a
// recompute watermark, marking the data behind the analytics view as fresh.
type RecomputeTask struct {
	Task
	admissionRepo database.AdmissionRepository
	watermarkRepo database.WatermarkRepository
}

func NewRecomputeTask(admissionRepo database.AdmissionRepository,
	watermarkRepo database.WatermarkRepository) *RecomputeTask {
	return &RecomputeTask{
		Task:          NewTask(TaskTypeRecomputeAnalytics),
		admissionRepo: admissionRepo,
		watermarkRepo: watermarkRepo,
	}
}

func (t *RecomputeTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.admissionRepo.Analyze(); err != nil {
		return fmt.Errorf("failed to refresh statistics: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := t.watermarkRepo.SetWatermark(database.SourceRecompute, now); err != nil {
		return fmt.Errorf("failed to set recompute watermark: %w", err)
	}

	slog.Info("Task completed",
		"type", "RecomputeAnalytics",
		"duration", t.GetDuration(),
		"recomputed_at", now)

	return nil
}
