package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/stats"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  add      -type -date -content -method -amount
  show     [-period month|year|all] [-ref YYYY-MM-DD]
  export   [-format json|xlsx] [-o file]   ("-o -" writes to stdout)
  import   [-yes] <file>
  clear    [-yes]
  chart    [-o file.png]
`

var errUsage = errors.New("invalid usage")

type app struct {
	ledger *services.LedgerService
	in     io.Reader
	out    io.Writer
	now    func() time.Time
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return a.add(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "import":
		return a.importFile(ctx, rest)
	case "clear":
		return a.clear(ctx, rest)
	case "chart":
		return a.chart(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	var form core.Form
	fs.StringVar(&form.Type, "type", "", "record category")
	fs.StringVar(&form.Date, "date", core.Today(a.now()).String(), "record date (YYYY-MM-DD)")
	fs.StringVar(&form.Content, "content", "", "description")
	fs.StringVar(&form.Method, "method", "", "payment method")
	fs.StringVar(&form.Amount, "amount", "", "non-negative amount")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, err := a.ledger.AddRecord(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added record %d: %s %s %s\n", rec.ID, rec.Date, rec.Type, core.FormatMoney(rec.Amount))
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := a.flags("show")
	period := fs.String("period", string(stats.Month), "month, year or all")
	refArg := fs.String("ref", "", "reference date (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := a.now()
	if *refArg != "" {
		d, err := core.ParseDate(*refArg)
		if err != nil {
			return &core.ParseError{Field: "ref", Value: *refArg, Err: err}
		}
		ref = d.Time
	}

	panel, err := a.ledger.Panel(ctx, stats.ParsePeriod(*period), ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n", panel.Title)
	fmt.Fprintf(a.out, "income %s  expense %s  balance %s\n\n", panel.Totals.Income, panel.Totals.Expense, panel.Totals.Balance)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, item := range panel.Items {
		if item.Placeholder {
			fmt.Fprintln(tw, item.Content)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.Date, item.Category, item.Method, item.Content, item.Amount)
	}
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	format := fs.String("format", "json", "json or xlsx")
	output := fs.String("o", "", "output file (default: dated filename)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		name    string
		payload []byte
		err     error
	)
	switch *format {
	case "json":
		name, payload, err = a.ledger.Export(ctx)
	case "xlsx":
		name, payload, err = a.ledger.ExportXLSX(ctx)
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}
	if err != nil {
		return err
	}

	switch *output {
	case "-":
		_, err = a.out.Write(payload)
		return err
	case "":
	default:
		name = *output
	}
	if err := os.WriteFile(name, payload, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.out, "exported to %s\n", name)
	return nil
}

func (a *app) importFile(ctx context.Context, args []string) error {
	fs := a.flags("import")
	yes := fs.Bool("yes", false, "replace without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: import takes exactly one file", errUsage)
	}

	payload, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	n, err := a.ledger.Import(ctx, payload, a.confirmer(*yes))
	if errors.Is(err, core.ErrCancelled) {
		fmt.Fprintln(a.out, "import cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d records\n", n)
	return nil
}

func (a *app) clear(ctx context.Context, args []string) error {
	fs := a.flags("clear")
	yes := fs.Bool("yes", false, "delete without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := a.ledger.Clear(ctx, a.confirmer(*yes))
	if errors.Is(err, core.ErrCancelled) {
		fmt.Fprintln(a.out, "clear cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "all records deleted")
	return nil
}

func (a *app) chart(ctx context.Context, args []string) error {
	fs := a.flags("chart")
	output := fs.String("o", "ledger_chart.png", "output PNG file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	png, err := a.ledger.Chart(ctx, a.now())
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, png, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	fmt.Fprintf(a.out, "chart written to %s\n", *output)
	return nil
}

func (a *app) confirmer(yes bool) services.Confirmer {
	if yes {
		return services.AlwaysConfirm
	}
	return cli.PromptConfirmer(a.in, a.out)
}
