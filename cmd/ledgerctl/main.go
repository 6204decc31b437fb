// Command ledgerctl manages the ledger from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/transfer"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("error", log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	// Only warnings and errors reach the terminal; stdout is for command output.
	logger := log.New(log.Config{Level: log.ParseLevel("warn"), Component: log.ComponentCLI})

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	a := &app{
		ledger: services.NewLedgerService(result.Ledger, result.Publisher(), transfer.Importer{Strict: cfg.ImportStrict}, logger),
		in:     os.Stdin,
		out:    os.Stdout,
		now:    time.Now,
	}

	err = a.run(ctx, os.Args[1:])
	if cerr := result.Close(); cerr != nil {
		logger.Warn("Backend cleanup error", "error", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
