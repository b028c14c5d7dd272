package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/workflow-capture/tasks"
)

var tasksApp string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Task catalogue commands",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue tasks with their 1-based indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		catalog, err := tasks.Load(cfg.Tasks.Catalog)
		if err != nil {
			return err
		}

		apps := catalog.AppNames()
		if tasksApp != "" {
			apps = []string{tasksApp}
		}

		var rows [][]string
		for _, app := range apps {
			entries, err := catalog.All(app)
			if err != nil {
				return err
			}
			for _, e := range entries {
				rows = append(rows, []string{e.App, fmt.Sprint(e.Index), e.Name, e.StartURL, truncate(e.Description, 70)})
			}
		}
		printTable(cmd.OutOrStdout(), []string{"APP", "INDEX", "NAME", "URL", "DESCRIPTION"}, rows)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksApp, "app", "", "only list tasks of this app")
	tasksCmd.AddCommand(tasksListCmd)
	rootCmd.AddCommand(tasksCmd)
}
