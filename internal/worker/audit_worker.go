package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"timbro/internal/amqp"
	"timbro/internal/core"
	applog "timbro/internal/log"
	"timbro/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// NotificationStore is the slice of the data layer the audit worker needs.
type NotificationStore interface {
	Notification(ctx context.Context, id int64) (core.Notification, error)
	UnexportedNotifications(ctx context.Context, limit int) ([]core.Notification, error)
	MarkNotificationExported(ctx context.Context, id int64) error
}

// AuditWorker exports manual-entry notifications to the shared audit sheet.
// AMQP deliveries drive the hot path; a periodic sweep over unexported rows
// recovers anything a lost message left behind.
type AuditWorker struct {
	store     NotificationStore
	sheet     sheets.AuditAppender
	batchSize int
}

func NewAuditWorker(store NotificationStore, sheet sheets.AuditAppender, batchSize int) *AuditWorker {
	return &AuditWorker{
		store:     store,
		sheet:     sheet,
		batchSize: batchSize,
	}
}

// HandleAdjustmentMessage processes a single adjustment message from AMQP
func (w *AuditWorker) HandleAdjustmentMessage(ctx context.Context, msg *amqp.AdjustmentMessage) error {
	slog.InfoContext(ctx, "Processing adjustment message",
		"notification_id", msg.ID,
		"person", msg.Person)

	notif, err := w.store.Notification(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get notification from storage: %w", err)
	}

	if notif.Exported {
		// The periodic sweep may have exported it already.
		slog.InfoContext(ctx, "Notification already exported, skipping",
			"notification_id", msg.ID)
		return nil
	}

	return w.exportNotification(ctx, notif)
}

// ProcessPending exports any notifications that have not been exported yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *AuditWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.UnexportedNotifications(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get unexported notifications: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unexported notifications", "count", len(pending))

	for _, notif := range pending {
		if err := w.exportNotification(ctx, notif); err != nil {
			slog.ErrorContext(ctx, "Failed to export notification",
				"notification_id", notif.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck sweeps a larger backlog once at worker startup to recover
// from missed messages or worker downtime.
func (w *AuditWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.UnexportedNotifications(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get unexported notifications for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unexported notifications found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unexported notifications on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, notif := range pending {
		if err := w.exportNotification(ctx, notif); err != nil {
			slog.ErrorContext(ctx, "Failed to export notification during startup",
				"notification_id", notif.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

// Run drives the worker: one goroutine consumes AMQP deliveries, another
// sweeps unexported rows on a ticker. Both stop when ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, client *amqp.Client, sweepInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeAdjustments(ctx, func(msg *amqp.AdjustmentMessage) error {
			return w.HandleAdjustmentMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic export sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *AuditWorker) exportNotification(ctx context.Context, notif core.Notification) error {
	ref, err := w.sheet.AppendAudit(ctx, notif)
	if err != nil {
		return fmt.Errorf("append to audit sheet: %w", err)
	}

	if err := w.store.MarkNotificationExported(ctx, notif.ID); err != nil {
		// The append worked; the sweep will retry the mark and the
		// exported guard keeps the row from being written twice in a row.
		slog.ErrorContext(ctx, "Failed to mark notification as exported",
			"notification_id", notif.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported notification to audit sheet",
		"operation", applog.OpExport,
		"notification_id", notif.ID,
		"person", notif.Person,
		"delta_hours", notif.DeltaHours,
		"sheets_ref", ref)

	return nil
}
