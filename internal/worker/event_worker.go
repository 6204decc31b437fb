package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/transfer"
)

// Snapshotter reads the full record list. *ledger.Store implements it.
type Snapshotter interface {
	All(ctx context.Context) ([]core.Record, error)
}

type BackupConfig struct {
	Dir       string
	Retention int
	Debounce  time.Duration
}

// EventWorker audits ledger events and keeps JSON backups of the store.
// Bursts of events inside the debounce window produce a single backup.
type EventWorker struct {
	records Snapshotter
	cfg     BackupConfig
	now     func() time.Time

	mu      sync.Mutex
	pending bool
	handled int

	kick chan struct{}
}

func NewEventWorker(records Snapshotter, cfg BackupConfig) *EventWorker {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 5 * time.Second
	}
	return &EventWorker{
		records: records,
		cfg:     cfg,
		now:     time.Now,
		kick:    make(chan struct{}, 1),
	}
}

// HandleEvent logs ev and schedules a backup. It never blocks on the backup itself.
func (w *EventWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Ledger event",
		"event_id", ev.ID,
		"event_kind", ev.Kind,
		"record_id", ev.RecordID,
		"record_count", ev.RecordCount,
		"at", ev.Timestamp)

	w.mu.Lock()
	w.pending = true
	w.handled++
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
	return nil
}

// Pending reports whether a backup is scheduled but not yet written.
func (w *EventWorker) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Flush writes a backup if one is pending and prunes old ones.
// It returns the new backup path, or "" when nothing was pending.
func (w *EventWorker) Flush(ctx context.Context) (string, error) {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return "", nil
	}
	w.pending = false
	w.mu.Unlock()

	path, err := w.backup(ctx)
	if err != nil {
		w.mu.Lock()
		w.pending = true
		w.mu.Unlock()
		return "", err
	}
	return path, nil
}

func (w *EventWorker) backup(ctx context.Context) (string, error) {
	records, err := w.records.All(ctx)
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}

	path, err := transfer.WriteBackup(w.cfg.Dir, records, w.now())
	if err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	removed, err := transfer.PruneBackups(w.cfg.Dir, w.cfg.Retention)
	if err != nil {
		slog.WarnContext(ctx, "Failed to prune backups", "dir", w.cfg.Dir, "error", err)
	}

	slog.InfoContext(ctx, "Ledger backup written",
		"file", path,
		"record_count", len(records),
		"pruned", removed)
	return path, nil
}

// StartupBackup writes a backup when the backup directory has none yet.
func (w *EventWorker) StartupBackup(ctx context.Context) error {
	existing, err := transfer.ListBackups(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(existing) > 0 {
		slog.InfoContext(ctx, "Backups found on startup", "count", len(existing))
		return nil
	}
	_, err = w.backup(ctx)
	return err
}

// Run drives the debounce timer until ctx is done, then flushes once more.
func (w *EventWorker) Run(ctx context.Context) error {
	timer := time.NewTimer(w.cfg.Debounce)
	stopTimer(timer)

	for {
		select {
		case <-ctx.Done():
			stopTimer(timer)
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := w.Flush(flushCtx); err != nil {
				slog.Error("Final backup failed", "error", err)
			}
			return nil
		case <-w.kick:
			resetTimer(timer, w.cfg.Debounce)
		case <-timer.C:
			if _, err := w.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Backup failed, will retry on next event", "error", err)
			}
		}
	}
}

// stopTimer stops t and discards a fire that was not received yet.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

// Stats returns how many events were handled.
func (w *EventWorker) Stats() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handled
}
