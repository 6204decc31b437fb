package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/stats"
	"ledger/internal/transfer"
	"ledger/internal/view"
)

// RecordStore is the persisted record list. *ledger.Store implements it.
type RecordStore interface {
	Append(ctx context.Context, r core.Record) (core.Record, error)
	All(ctx context.Context) ([]core.Record, error)
	ReplaceAll(ctx context.Context, records []core.Record) error
	Clear(ctx context.Context) error
}

// EventPublisher receives an event after every successful mutation.
// *amqp.Client implements it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService orchestrates form intake, the record store, the panels and
// import/export. Every statistic is recomputed from a fresh read of the store.
type LedgerService struct {
	store     RecordStore
	publisher EventPublisher
	importer  transfer.Importer
	logger    *log.StructuredLogger
	now       func() time.Time
	charts    *cache.LRU[[]byte]
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store RecordStore, publisher EventPublisher, importer transfer.Importer, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		importer:  importer,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		now:       time.Now,
		charts:    cache.NewLRU[[]byte](16, 10*time.Minute),
	}
}

// AddRecord normalizes form and appends the resulting record. Form problems
// are returned as *core.ParseError or a core validation error before the
// store is touched.
func (s *LedgerService) AddRecord(ctx context.Context, form core.Form) (core.Record, error) {
	r, err := core.NewRecord(form, s.now())
	if err != nil {
		return core.Record{}, err
	}

	stored, err := s.store.Append(ctx, r)
	if err != nil {
		s.logger.LogError(ctx, "Failed to append record", err, log.ComponentLedger, log.OpAppend, nil)
		return core.Record{}, fmt.Errorf("add record: %w", err)
	}
	s.logger.LogRecordAdded(ctx, stored.ID, stored.Type, stored.Amount.String())

	s.publish(ctx, amqp.NewLedgerEvent(amqp.KindRecordAppended, stored.ID, 1))
	return stored, nil
}

// Records returns every stored record in insertion order.
func (s *LedgerService) Records(ctx context.Context) ([]core.Record, error) {
	return s.store.All(ctx)
}

// Panel renders one period panel relative to ref.
func (s *LedgerService) Panel(ctx context.Context, period stats.Period, ref time.Time) (view.Panel, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return view.Panel{}, err
	}
	return buildPanel(records, period, ref), nil
}

// Dashboard renders the month, year and all-time panels from one snapshot.
func (s *LedgerService) Dashboard(ctx context.Context, ref time.Time) ([]view.Panel, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	periods := stats.Periods()
	panels := make([]view.Panel, len(periods))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range periods {
		g.Go(func() error {
			panels[i] = buildPanel(records, p, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return panels, nil
}

// Chart renders the dashboard totals as a PNG bar chart. Renders are cached
// by the totals they were drawn from, so a changed ledger always redraws.
func (s *LedgerService) Chart(ctx context.Context, ref time.Time) ([]byte, error) {
	panels, err := s.Dashboard(ctx, ref)
	if err != nil {
		return nil, err
	}

	key := chartKey(panels)
	if png, ok := s.charts.Get(key); ok {
		return png, nil
	}
	png, err := view.Chart(panels)
	if err != nil {
		return nil, err
	}
	s.charts.Set(key, png)
	return png, nil
}

func chartKey(panels []view.Panel) string {
	var b strings.Builder
	for _, p := range panels {
		fmt.Fprintf(&b, "%s:%s/%s/%s;", p.Period, p.Stats.Income, p.Stats.Expense, p.Stats.Balance)
	}
	return b.String()
}

func buildPanel(records []core.Record, period stats.Period, ref time.Time) view.Panel {
	selected := stats.SelectByPeriod(records, period, ref)
	return view.Render(period, selected, stats.Aggregate(selected))
}

// Export returns the JSON snapshot of the store and its download filename.
func (s *LedgerService) Export(ctx context.Context) (string, []byte, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return "", nil, err
	}
	payload, err := transfer.Export(records)
	if err != nil {
		return "", nil, err
	}
	return transfer.Filename(s.now()), payload, nil
}

// ExportXLSX returns the spreadsheet export of the store and its filename.
func (s *LedgerService) ExportXLSX(ctx context.Context) (string, []byte, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return "", nil, err
	}
	payload, err := transfer.ExportXLSX(records)
	if err != nil {
		return "", nil, err
	}
	return transfer.XLSXFilename(s.now()), payload, nil
}

// Import parses payload and, once confirmed, replaces the whole store with it.
// A payload that is not a record list fails with *core.FormatError before
// confirm is asked. Declining returns core.ErrCancelled.
func (s *LedgerService) Import(ctx context.Context, payload []byte, confirm Confirmer) (int, error) {
	records, err := s.importer.Parse(payload)
	if err != nil {
		return 0, err
	}

	prompt := fmt.Sprintf("Replace all stored records with %d imported records?", len(records))
	if err := s.confirm(ctx, confirm, prompt); err != nil {
		return 0, err
	}

	if err := s.store.ReplaceAll(ctx, records); err != nil {
		s.logger.LogError(ctx, "Failed to replace records", err, log.ComponentLedger, log.OpImport, log.NewFields().WithRecordCount(len(records)))
		return 0, fmt.Errorf("import: %w", err)
	}
	s.logger.LogLedgerReplaced(ctx, log.OpImport, len(records))

	s.publish(ctx, amqp.NewLedgerEvent(amqp.KindLedgerReplaced, 0, len(records)))
	return len(records), nil
}

// Clear deletes every stored record once confirmed.
func (s *LedgerService) Clear(ctx context.Context, confirm Confirmer) error {
	if err := s.confirm(ctx, confirm, "Delete all stored records?"); err != nil {
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.LogError(ctx, "Failed to clear records", err, log.ComponentLedger, log.OpClear, nil)
		return fmt.Errorf("clear: %w", err)
	}
	s.logger.LogLedgerReplaced(ctx, log.OpClear, 0)

	s.publish(ctx, amqp.NewLedgerEvent(amqp.KindLedgerCleared, 0, 0))
	return nil
}

func (s *LedgerService) confirm(ctx context.Context, confirm Confirmer, prompt string) error {
	if confirm == nil {
		return core.ErrCancelled
	}
	ok, err := confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return core.ErrCancelled
	}
	return nil
}

// publish is best effort: the ledger mutation already succeeded.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.LogError(ctx, "Failed to publish ledger event", err, log.ComponentAMQP, string(ev.Kind),
			log.NewFields().WithRecordCount(ev.RecordCount))
	}
}
