package commands

import (
	"context"

	"kvksnapshot/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	otelSetup telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:           "kvksnapshot",
	Short:         "kvksnapshot collects new KvK registrations into dated CSV snapshots.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, a .local variant next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
}

// SetTelemetry hands the otel setup made in main to the commands, it
// decides whether perf stats are recorded.
func SetTelemetry(t telemetry.Telemetry) {
	otelSetup = t
}

// ExecuteContext runs the command line, exiting is left to the caller so
// telemetry can be flushed first.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
