package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	_ "time/tzdata"

	"kvksnapshot/cmd/kvksnapshot/commands"
	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/lib/osutil"
)

func run() int {
	telemetry.InitSlog(false)

	ctx, stop := osutil.SignalContext(context.Background())
	defer stop()

	tel, err := telemetry.SetupFromEnv(ctx, "kvksnapshot")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}()

	commands.SetTelemetry(tel)
	if err := commands.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
