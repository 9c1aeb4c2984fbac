package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/internal/publish"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(publishCmd)
}

func newPublisher(cfg Config, tel telemetry.API) *publish.Client {
	return publish.NewClient(publish.ClientOptions{
		ApiBase: cfg.Publish.ApiBase,
		Token:   cfg.GithubToken,
		Owner:   cfg.Publish.Owner,
		Repo:    cfg.Publish.Repo,
		Branch:  cfg.Publish.Branch,
	}, tel)
}

func baseName(path string) string {
	return filepath.Base(path)
}

func publishMessage(remotePath string) string {
	return fmt.Sprintf("Update %s", remotePath)
}

var publishCmd = &cobra.Command{
	Use:   "publish <snapshot.csv>",
	Short: "Uploads an existing snapshot file to the configured GitHub repository.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if cfg.Publish.Owner == "" || cfg.Publish.Repo == "" {
			return fmt.Errorf("publish: owner and repo must be configured")
		}

		contents, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}

		remote := publish.RemotePath(cfg.Publish.Dir, baseName(args[0]))
		downloadUrl, err := newPublisher(cfg, telemetry.SlogAPI{}).
			Publish(cmd.Context(), remote, contents, publishMessage(remote))
		if err != nil {
			return err
		}
		slog.Info("published snapshot", "path", remote)
		fmt.Fprintln(cmd.OutOrStdout(), downloadUrl)
		return nil
	},
}
