package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"kvksnapshot/internal/collector"
	"kvksnapshot/internal/components/chrono"
	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/internal/ledger"
	"kvksnapshot/internal/openkvk"
	"kvksnapshot/internal/publish"
	"kvksnapshot/internal/record"
	"kvksnapshot/internal/translate"
	"kvksnapshot/lib/restyutil"

	"github.com/spf13/cobra"
)

var (
	collectCities     *[]string
	collectPageSize   *int
	collectMaxRecords *int
	collectPublish    *bool
	collectDumpHttp   *string
)

func init() {
	collectCities = collectCmd.Flags().StringSlice("cities", nil, "Cities to walk, in order. Overrides the config.")
	collectPageSize = collectCmd.Flags().Int("page-size", 0, "Listings requested per page.")
	collectMaxRecords = collectCmd.Flags().Int("max-records", 0, "Stop after this many records, 0 is unbounded.")
	collectPublish = collectCmd.Flags().Bool("publish", false, "Publish the snapshot to GitHub after writing it.")
	collectDumpHttp = collectCmd.Flags().String("dump-http", "", "Write a transcript of every registry request to this directory.")
	rootCmd.AddCommand(collectCmd)
}

func applyCollectFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("cities") {
		cfg.Cities = *collectCities
	}
	if flags.Changed("page-size") {
		cfg.PageSize = *collectPageSize
	}
	if flags.Changed("max-records") {
		cfg.MaxRecords = *collectMaxRecords
	}
	if flags.Changed("publish") {
		cfg.Publish.Enabled = *collectPublish
	}
	if flags.Changed("dump-http") {
		cfg.DumpHttp = *collectDumpHttp
	}
}

var collectCmd = &cobra.Command{
	Use:   "collect [--cities a,b] [--page-size n] [--max-records n] [--publish]",
	Short: "Walks every configured city and writes a snapshot of registrations not seen before.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}
		applyCollectFlags(cmd, &cfg)

		ctx := cmd.Context()
		if otelSetup.Enabled() {
			telemetry.InstrumentPerfStats(ctx)
		}

		_, err = collect(ctx, cfg, chrono.NewStandardTime(), telemetry.SlogAPI{}, cmd.OutOrStdout())
		return err
	},
}

type collectOutput struct {
	result     collector.Result
	snapshot   string
	recent     string
	publishUrl string
}

// collect runs the collector, writes the snapshot files and prints the
// summary to out. Publishing never fails the command.
func collect(ctx context.Context, cfg Config, clock chrono.TimeAPI, tel telemetry.API, out io.Writer) (collectOutput, error) {
	err := cfg.Validate()
	if err != nil {
		return collectOutput{}, err
	}
	d, err := cfg.durations()
	if err != nil {
		return collectOutput{}, err
	}
	if cfg.ApiKey == "" {
		slog.Warn("no api key configured, requests will likely be rejected", "env", apiKeyEnv)
	}

	var transcripts restyutil.Output
	if cfg.DumpHttp != "" {
		dump, err := restyutil.NewFilesystemOutput(cfg.DumpHttp)
		if err != nil {
			return collectOutput{}, err
		}
		transcripts = dump
	}

	registry, err := openkvk.NewClient(openkvk.ClientOptions{
		BaseUrl:        cfg.ApiBase,
		ApiKey:         cfg.ApiKey,
		ProfileTimeout: d.profileTimeout,
		Transcripts:    transcripts,
	}, tel)
	if err != nil {
		return collectOutput{}, err
	}

	var translator collector.Translator
	if cfg.Translate.Enabled {
		translator = translate.NewClient(translate.ClientOptions{
			BaseUrl:  cfg.Translate.BaseUrl,
			Source:   cfg.Translate.Source,
			Target:   cfg.Translate.Target,
			MaxChars: cfg.Translate.MaxChars,
			Timeout:  d.translateTimeout,
		}, tel)
	}

	c := collector.NewCollector(
		registry,
		ledger.File{Path: cfg.LedgerPath},
		translator,
		clock,
		tel,
		collector.Options{
			Cities:     cfg.Cities,
			PageSize:   cfg.PageSize,
			MaxRecords: cfg.MaxRecords,
			ItemDelay:  d.itemDelay,
			MapsLinks:  cfg.MapsLinks,
		},
	)

	output := collectOutput{}
	date := chrono.CompactDate(clock.Now())

	// the snapshot files are written before the ledger is persisted, a
	// failed export must not mark registrations as seen
	result, err := c.RunWith(ctx, func(result collector.Result) error {
		var err error
		name := record.FileName(cfg.FilePrefix, date, "")
		output.snapshot, err = record.ExportFile(cfg.OutDir, name, result.Records)
		if err != nil {
			return err
		}
		slog.Info("wrote snapshot", "path", output.snapshot, "records", len(result.Records), "new_keys", result.NewKeys)

		if cfg.RecentDays > 0 {
			recent := record.FilterRecent(result.Records, clock.Now(), cfg.RecentDays)
			output.recent, err = record.ExportFile(cfg.OutDir, record.FileName(cfg.FilePrefix, date, "recent"), recent)
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			slog.Info("wrote recent snapshot", "path", output.recent, "records", len(recent), "days", cfg.RecentDays)
		}
		return nil
	})
	if err != nil {
		return collectOutput{}, fmt.Errorf("collect: %w", err)
	}
	output.result = result

	result.RenderSummary(out)

	if cfg.Publish.Enabled {
		output.publishUrl = publishFile(ctx, cfg, tel, output.snapshot)
	}
	return output, nil
}

// publishFile uploads a written snapshot, failures are reported and
// otherwise ignored.
func publishFile(ctx context.Context, cfg Config, tel telemetry.API, localPath string) string {
	contents, err := os.ReadFile(localPath)
	if err != nil {
		tel.ReportBroken("collect.publish", err, localPath)
		return ""
	}
	client := newPublisher(cfg, tel)
	remote := publish.RemotePath(cfg.Publish.Dir, baseName(localPath))
	downloadUrl, ok := client.TryPublish(ctx, remote, contents, publishMessage(remote))
	if ok {
		slog.Info("published snapshot", "path", remote, "url", downloadUrl)
	}
	return downloadUrl
}
