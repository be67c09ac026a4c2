package main

import (
	"context"
	"log/slog"
	"os"

	"lwncomments/cmd/lwncomments/commands"
	"lwncomments/lib/osutil"
	"lwncomments/lib/telemetry"
)

func main() {
	ctx, cancel := osutil.SignalContext()
	defer cancel()

	tel, err := telemetry.SetupFromEnv(ctx, "lwncomments")
	if err != nil {
		slog.Warn("failed to set up telemetry", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	// flush buffered spans before the process goes away, on failing
	// runs too
	if err := tel.Shutdown(context.Background()); err != nil {
		slog.Warn("failed to shut down telemetry", "err", err)
	}

	if code != 0 {
		os.Exit(code)
	}
}
