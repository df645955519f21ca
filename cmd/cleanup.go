package cmd

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/provider"
	"github.com/liamg/stormscan/reaper"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var threshold uint64

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stale servers",
		Long:  `Deletes every server in the project that is older than the threshold, including ones left behind by crashed sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {

			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			token, err := env.APIToken()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			age, err := thresholdDuration(threshold)
			if err != nil {
				return err
			}

			r := reaper.New(provider.NewHCloud(token, logger), logger)
			report, err := r.Purge(ctx, age)
			if err != nil {
				return err
			}

			pterm.Success.Printf("Deleted %d servers\n", len(report.Deleted))
			if len(report.Failed) > 0 {
				pterm.Warning.Printf("Failed to delete: %s\n", strings.Join(report.Failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().Uint64VarP(&threshold, "threshold", "t", threshold, "All VMs older than THRESHOLD seconds will be deleted.")
	cmd.MarkFlagRequired("threshold")

	return cmd
}

// maxThreshold is the largest number of seconds a time.Duration can hold.
const maxThreshold = uint64(math.MaxInt64 / int64(time.Second))

func thresholdDuration(seconds uint64) (time.Duration, error) {
	if seconds > maxThreshold {
		return 0, failure.Config("parsing threshold", fmt.Errorf("%d seconds is more than the maximum of %d", seconds, maxThreshold))
	}
	return time.Duration(seconds) * time.Second, nil
}
