package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/kv/memory"
	"ledger/internal/ledger"
	"ledger/internal/services"
	"ledger/internal/transfer"
)

func newTestApp(t *testing.T, stdin string) (*app, *ledger.Store, *bytes.Buffer) {
	t.Helper()
	store := ledger.NewStore(memory.New(), ledger.DefaultKey)
	out := &bytes.Buffer{}
	return &app{
		ledger: services.NewLedgerService(store, nil, transfer.Importer{}, nil),
		in:     strings.NewReader(stdin),
		out:    out,
		now:    func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) },
	}, store, out
}

func TestRun_Usage(t *testing.T) {
	a, _, out := newTestApp(t, "")
	assert.ErrorIs(t, a.run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, a.run(context.Background(), []string{"frobnicate"}), errUsage)
	assert.Contains(t, out.String(), "usage: ledgerctl")
}

func TestAddAndShow(t *testing.T) {
	a, store, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"add", "-type", "balance-carry", "-content", "salary", "-method", "bank", "-amount", "1000"}))
	require.NoError(t, a.run(ctx, []string{"add", "-type", "food", "-date", "2024-03-18", "-content", "dinner", "-method", "card", "-amount", "45.5"}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-03-20", all[0].Date.String())

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"show", "-period", "month"}))
	got := out.String()
	assert.Contains(t, got, "This month")
	assert.Contains(t, got, "income ¥1000.00  expense ¥45.50  balance ¥954.50")
	assert.Contains(t, got, "-¥45.50")

	out.Reset()
	require.NoError(t, a.run(ctx, []string{"show", "-period", "month", "-ref", "2024-04-02"}))
	assert.Contains(t, out.String(), "income ¥0.00  expense ¥0.00  balance ¥0.00")
	assert.Contains(t, out.String(), "No records")

	assert.Error(t, a.run(ctx, []string{"show", "-ref", "yesterday"}))
}

func TestAdd_Invalid(t *testing.T) {
	a, store, _ := newTestApp(t, "")
	err := a.run(context.Background(), []string{"add", "-type", "food", "-content", "x", "-method", "card", "-amount", "-3"})
	require.Error(t, err)

	all, _ := store.All(context.Background())
	assert.Empty(t, all)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "export.json")

	a, _, _ := newTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, a.run(ctx, []string{"add", "-type", "food", "-content", "bread", "-method", "cash", "-amount", "3"}))
	require.NoError(t, a.run(ctx, []string{"export", "-o", file}))

	b, store, out := newTestApp(t, "n\n")
	require.NoError(t, b.run(ctx, []string{"import", file}))
	assert.Contains(t, out.String(), "[y/N]")
	assert.Contains(t, out.String(), "import cancelled")
	all, _ := store.All(ctx)
	assert.Empty(t, all)

	require.NoError(t, b.run(ctx, []string{"import", "-yes", file}))
	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bread", all[0].Content)
}

func TestExport_StdoutAndXLSX(t *testing.T) {
	a, _, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"export", "-o", "-"}))
	assert.Equal(t, "[]\n", out.String())

	file := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, a.run(ctx, []string{"export", "-format", "xlsx", "-o", file}))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	assert.ErrorIs(t, a.run(ctx, []string{"export", "-format", "csv"}), errUsage)
}

func TestImport_NotAnArray(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"id":1}`), 0o644))

	a, _, _ := newTestApp(t, "y\n")
	err := a.run(context.Background(), []string{"import", file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestClear_PromptsAndConfirms(t *testing.T) {
	a, store, out := newTestApp(t, "yes\n")
	ctx := context.Background()
	require.NoError(t, a.run(ctx, []string{"add", "-type", "food", "-content", "bread", "-method", "cash", "-amount", "3"}))

	require.NoError(t, a.run(ctx, []string{"clear"}))
	assert.Contains(t, out.String(), "all records deleted")

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestChart(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	file := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, a.run(context.Background(), []string{"chart", "-o", file}))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
