package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/liamg/stormscan/config"
	"github.com/liamg/stormscan/inventory"
	"github.com/liamg/stormscan/journal"
	"github.com/liamg/stormscan/output"
	"github.com/liamg/stormscan/provider"
	"github.com/liamg/stormscan/remote"
	"github.com/liamg/stormscan/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var opts config.SessionOptions

	cmd := &cobra.Command{
		Use:     "scan",
		Aliases: []string{"masscan"},
		Short:   "Scan targets from a cloud server",
		Long:    `Creates a server, runs masscan against the targets from it, writes one JSON file per responding host and deletes the server again.`,
		RunE: func(cmd *cobra.Command, args []string) error {

			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			token, err := env.APIToken()
			if err != nil {
				return err
			}

			opts.NoResolve = noResolve
			cfg, err := config.NewSession(env, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessionOpts := []session.Option{
				session.WithResolver(net.DefaultResolver),
				session.WithInventoryBuilder(inventory.NewBuilder(func(accountToken string) provider.Provider {
					return provider.NewHCloud(accountToken, logger)
				}, logger)),
			}

			if env.Journal.Path != "" {
				repo, err := journal.New(env.Journal.Path)
				if err != nil {
					return err
				}
				defer repo.Close()
				sessionOpts = append(sessionOpts, session.WithRecorder(repo))
			}

			orchestrator := session.New(
				cfg,
				provider.NewHCloud(token, logger),
				remote.NewSSHDialer(cfg.SSH.Port, logger),
				logger,
				sessionOpts...,
			)

			report, err := orchestrator.Run(ctx)
			if report != nil {
				if err := printSummary(report.Written); err != nil {
					logger.WithError(err).Warn("Failed to print summary")
				}
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.TargetFile, "targets", "t", opts.TargetFile, "File with targets (IP address or CIDR) to scan. One per line.")
	flags.StringVarP(&opts.APIKeysFile, "api-keys", "a", opts.APIKeysFile, "File with API keys of projects to scan. YAML array.")
	flags.StringVarP(&opts.OutputDir, "output-dir", "o", opts.OutputDir, "Directory to write results to")
	flags.StringVar(&opts.PublicKeyPath, "ssh-public-key", opts.PublicKeyPath, "File with the public SSH key to be given access to created VM")
	flags.StringVar(&opts.PrivateKeyPath, "ssh-private-key", opts.PrivateKeyPath, "File with the private SSH key corresponding to the ssh-public-key")
	flags.BoolVar(&opts.RequireTargets, "require-targets", opts.RequireTargets, "Fail when there is nothing to scan")

	cmd.MarkFlagsMutuallyExclusive("targets", "api-keys")
	cmd.MarkFlagsOneRequired("targets", "api-keys")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("ssh-public-key")
	cmd.MarkFlagRequired("ssh-private-key")

	return cmd
}

func summaryRows(written []output.Written) [][]string {
	rows := make([][]string, 0, len(written))
	for _, host := range written {
		rows = append(rows, []string{
			host.Name,
			host.IP,
			strconv.Itoa(len(host.Ports)),
			host.Ports.String(),
			host.Path,
		})
	}
	return rows
}

func printSummary(written []output.Written) error {
	if len(written) == 0 {
		pterm.Info.Println("No open ports found")
		return nil
	}

	data := pterm.TableData{{"Host", "IP", "Open", "Ports", "File"}}
	data = append(data, summaryRows(written)...)

	if err := pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(data).Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
