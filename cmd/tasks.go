package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/trialeval/internal/adapters/catalog"
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/spf13/cobra"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	var (
		catalogPath string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the trial task catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if catalogPath != "" {
				cfg.CatalogPath = catalogPath
			}
			cat, err := catalog.New(catalog.WithPath(cfg.CatalogPath))
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), cat.List(cmd.Context()), asJSON)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalog file (overrides config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printTasks(w io.Writer, tasks []model.TrialTask, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	styles := newPrintStyles()
	fmt.Fprintln(w, styles.header.Render(fmt.Sprintf("%-22s %-14s %6s %8s %9s  %s", "ID", "CATEGORY", "PAY", "MINUTES", "THRESHOLD", "TITLE")))
	for _, t := range tasks {
		line := fmt.Sprintf("%-22s %-14s %6.0f %8d %8.0f%%  %s",
			t.ID, t.Category, t.PayAmount, t.TimeLimitMinutes, t.AccuracyThreshold, t.Title)
		if !t.Active {
			line = styles.dim.Render(line + " (inactive)")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
