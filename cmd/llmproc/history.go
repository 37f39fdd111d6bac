package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/internal/history"
)

const timeLayout = "2006-01-02 15:04:05"

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the items of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := history.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return showRun(out, st, args[0], asJSON)
			}

			runs, err := st.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if asJSON {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					string(r.Mode),
					r.StartedAt.Local().Format(timeLayout),
					fmt.Sprintf("%d/%d", r.Succeeded, r.Succeeded+r.Failed),
					r.Model,
					r.Input,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "MODE", "STARTED", "OK", "MODEL", "INPUT"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func showRun(out io.Writer, st *history.Store, id string, asJSON bool) error {
	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	items, err := st.Items(id)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}
	if asJSON {
		return writeJSON(out, struct {
			*history.Run
			Items []*history.Item `json:"items"`
		}{run, items})
	}

	fmt.Fprintf(out, "Run %s (%s) %s\n", run.ID, run.Mode, run.StartedAt.Local().Format(timeLayout))
	if run.Name != "" {
		fmt.Fprintf(out, "  job:    %s\n", run.Name)
	}
	fmt.Fprintf(out, "  input:  %s\n  output: %s\n  model:  %s\n", run.Input, run.Output, run.Model)
	fmt.Fprintf(out, "  %d succeeded, %d failed in %s\n\n",
		run.Succeeded, run.Failed, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.Itoa(it.Index),
			string(it.Status),
			strconv.Itoa(it.Attempts),
			it.Source,
			it.Destination,
			it.Error,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "STATUS", "ATTEMPTS", "SOURCE", "DEST", "ERROR"}, rows))
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
