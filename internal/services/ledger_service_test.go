package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/kv/memory"
	"ledger/internal/ledger"
	"ledger/internal/stats"
	"ledger/internal/transfer"
	"ledger/internal/view"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc       *LedgerService
	store     *ledger.Store
	publisher *recordingPublisher
}

func newFixture(t *testing.T, strict bool) fixture {
	t.Helper()
	store := ledger.NewStore(memory.New(), ledger.DefaultKey)
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub, transfer.Importer{Strict: strict}, nil)
	clock := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return fixture{svc: svc, store: store, publisher: pub}
}

func (f fixture) seedMarch(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.AddRecord(ctx, core.Form{Type: core.IncomeCategory, Date: "2024-03-01", Content: "carry", Method: "bank", Amount: "100"})
	require.NoError(t, err)
	_, err = f.svc.AddRecord(ctx, core.Form{Type: "utility", Date: "2024-03-15", Content: "power", Method: "card", Amount: "40"})
	require.NoError(t, err)
}

func countingConfirmer(answer bool) (Confirmer, *int) {
	calls := 0
	return ConfirmFunc(func(context.Context, string) (bool, error) {
		calls++
		return answer, nil
	}), &calls
}

func TestAddRecord(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	r, err := f.svc.AddRecord(ctx, core.Form{Type: "food", Date: "2024-03-02", Content: " lunch ", Method: "cash", Amount: "12,5"})
	require.NoError(t, err)
	assert.Equal(t, "lunch", r.Content)
	assert.Equal(t, "12.5", r.Amount.String())
	assert.Equal(t, r.ID, r.Timestamp)

	all, err := f.svc.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, r.ID, all[0].ID)
	assert.Equal(t, []amqp.EventKind{amqp.KindRecordAppended}, f.publisher.kinds())
}

func TestAddRecordMultiByteContent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	content := strings.Repeat("午", 70)
	r, err := f.svc.AddRecord(ctx, core.Form{Type: "food", Date: "2024-03-02", Content: content, Method: "cash", Amount: "8"})
	require.NoError(t, err)
	assert.Equal(t, content, r.Content)

	all, err := f.svc.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, content, all[0].Content)
}

func TestAddRecordRejectsBadForm(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.AddRecord(ctx, core.Form{Type: "food", Date: "2024-03-02", Content: "x", Method: "cash", Amount: "abc"})
	var pe *core.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "amount", pe.Field)

	_, err = f.svc.AddRecord(ctx, core.Form{Type: "gifts", Date: "2024-03-02", Content: "x", Method: "cash", Amount: "1"})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	all, err := f.svc.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.publisher.kinds())
}

func TestAddRecordSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.AddRecord(context.Background(), core.Form{Type: "food", Date: "2024-03-02", Content: "x", Method: "cash", Amount: "1"})
	require.NoError(t, err)
}

func TestDashboardMarchScenario(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)

	panels, err := f.svc.Dashboard(context.Background(), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, panels, 3)

	month := panels[0]
	assert.Equal(t, stats.Month, month.Period)
	assert.Equal(t, view.Totals{Income: "¥100.00", Expense: "¥40.00", Balance: "¥60.00"}, month.Totals)
	require.Len(t, month.Items, 2)
	assert.Equal(t, "utility", month.Items[0].Category, "newest creation first")
	assert.Equal(t, core.IncomeCategory, month.Items[1].Category)
}

func TestDashboardNextMonthIsEmpty(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)

	panels, err := f.svc.Dashboard(context.Background(), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	month := panels[0]
	assert.Zero(t, month.Count)
	require.Len(t, month.Items, 1)
	assert.True(t, month.Items[0].Placeholder)

	year := panels[1]
	assert.Equal(t, 2, year.Count)
	assert.Equal(t, "¥60.00", year.Totals.Balance)
}

func TestPanelUnknownPeriodShowsAll(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)

	p, err := f.svc.Panel(context.Background(), stats.ParsePeriod("fortnight"), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count)
}

func TestChart(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)

	ctx := context.Background()
	ref := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	png, err := f.svc.Chart(ctx, ref)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = f.svc.Chart(ctx, ref)
	require.NoError(t, err)
	hits, _ := f.svc.charts.Stats()
	assert.Equal(t, int64(1), hits, "unchanged totals reuse the render")

	_, err = f.svc.AddRecord(ctx, core.Form{Type: "food", Date: "2024-03-19", Content: "tea", Method: "cash", Amount: "2"})
	require.NoError(t, err)
	_, err = f.svc.Chart(ctx, ref)
	require.NoError(t, err)
	hits, misses := f.svc.charts.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses, "a new record redraws")
}

func TestImportNonArray(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	confirm, calls := countingConfirmer(true)

	_, err := f.svc.Import(context.Background(), []byte(`{"id":1}`), confirm)
	assert.True(t, core.IsFormat(err))
	assert.Zero(t, *calls, "no prompt for an unparseable payload")

	all, err := f.svc.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportDeclined(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	confirm, calls := countingConfirmer(false)

	_, err := f.svc.Import(context.Background(), []byte(`[]`), confirm)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, 1, *calls)

	all, err := f.svc.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, f.publisher.kinds(), amqp.KindLedgerReplaced)
}

func TestImportReplacesWholesale(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	ctx := context.Background()

	payload := []byte(`[{"id":9,"type":"food","date":"2024-05-05","content":"x","method":"cash","amount":"oops","timestamp":9}]`)
	n, err := f.svc.Import(ctx, payload, AlwaysConfirm)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := f.svc.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(9), all[0].ID)
	assert.True(t, all[0].Amount.IsZero(), "lenient import keeps the record with a zero amount")
	assert.Contains(t, f.publisher.kinds(), amqp.KindLedgerReplaced)
}

func TestImportStrictRejectsMalformed(t *testing.T) {
	f := newFixture(t, true)
	f.seedMarch(t)
	confirm, calls := countingConfirmer(true)

	payload := []byte(`[{"id":9,"type":"food","date":"2024-05-05","content":"x","method":"cash","amount":"oops","timestamp":9}]`)
	_, err := f.svc.Import(context.Background(), payload, confirm)
	assert.True(t, core.IsFormat(err))
	assert.Zero(t, *calls)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	ctx := context.Background()

	before, err := f.svc.Records(ctx)
	require.NoError(t, err)

	name, payload, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^accounting_records_2024-03-20\.json$`, name)

	require.NoError(t, f.svc.Clear(ctx, AlwaysConfirm))
	_, err = f.svc.Import(ctx, payload, AlwaysConfirm)
	require.NoError(t, err)

	after, err := f.svc.Records(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Type, after[i].Type)
		assert.Equal(t, before[i].Date.String(), after[i].Date.String())
		assert.Equal(t, before[i].Content, after[i].Content)
		assert.Equal(t, before[i].Method, after[i].Method)
		assert.True(t, before[i].Amount.Equal(after[i].Amount))
		assert.Equal(t, before[i].Timestamp, after[i].Timestamp)
	}
}

func TestLenientImportExportsMalformedAsStored(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	payload := `[
		{"id":4,"type":"food","date":"2024/03/05","content":"market","method":"cash","amount":"12.5","timestamp":4,"tag":"weekly"},
		{"id":5,"type":"utility","date":"2024-03-06","content":"gas","method":"card","amount":30,"timestamp":5}
	]`
	_, err := f.svc.Import(ctx, []byte(payload), AlwaysConfirm)
	require.NoError(t, err)

	_, out, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)

	name, payload, err := f.svc.ExportXLSX(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "accounting_records_2024-03-20.xlsx", name)
	assert.True(t, len(payload) > 4 && string(payload[:2]) == "PK", "xlsx is a zip archive")
}

func TestClear(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Clear(ctx, NeverConfirm), core.ErrCancelled)
	assert.ErrorIs(t, f.svc.Clear(ctx, nil), core.ErrCancelled)
	all, err := f.svc.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.svc.Clear(ctx, AlwaysConfirm))
	all, err = f.svc.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, amqp.KindLedgerCleared, f.publisher.kinds()[len(f.publisher.kinds())-1])
}

func TestConfirmErrorAborts(t *testing.T) {
	f := newFixture(t, false)
	f.seedMarch(t)
	boom := errors.New("stdin closed")

	err := f.svc.Clear(context.Background(), ConfirmFunc(func(context.Context, string) (bool, error) { return false, boom }))
	assert.ErrorIs(t, err, boom)
}
