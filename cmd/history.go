package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/journal"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	limit := 20

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recent scan sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			if env.Journal.Path == "" {
				return failure.Config("reading history", fmt.Errorf("journal.path is not set in %s", environmentConfig))
			}

			repo, err := journal.New(env.Journal.Path)
			if err != nil {
				return err
			}
			defer repo.Close()

			if len(args) == 1 {
				entry, err := repo.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("no session %s in %s", args[0], env.Journal.Path)
				}
				return pterm.DefaultTable.WithBoxed(false).WithData(sessionRows(*entry)).Render()
			}

			entries, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				pterm.Info.Println("No sessions recorded")
				return nil
			}

			data := pterm.TableData{{"Session", "Started", "Duration", "State", "Hosts", "Error"}}
			data = append(data, historyRows(entries)...)
			return pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(data).Render()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", limit, "Number of sessions to list")

	return cmd
}

func historyRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		duration := "-"
		if !entry.FinishedAt.IsZero() {
			duration = entry.FinishedAt.Sub(entry.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			entry.ID,
			formatTime(entry.StartedAt),
			duration,
			entry.State,
			strconv.Itoa(entry.Hosts),
			entry.Error,
		})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func sessionRows(entry journal.Entry) [][]string {
	return [][]string{
		{"Session", entry.ID},
		{"State", entry.State},
		{"Started", formatTime(entry.StartedAt)},
		{"Finished", formatTime(entry.FinishedAt)},
		{"Server", entry.Instance},
		{"SSH key", entry.SSHKey},
		{"Hosts", strconv.Itoa(entry.Hosts)},
		{"Error", entry.Error},
	}
}
