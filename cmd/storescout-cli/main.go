package main

import (
	"storescout/cmd/storescout-cli/commands"
	"storescout/lib/serviceutil"
	"storescout/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "storescout-cli")
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
