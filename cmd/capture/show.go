package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/workflow-capture/workflow"
)

var (
	showSteps bool
	showJSON  bool
)

var showCmd = &cobra.Command{
	Use:   "show <workflow-path>",
	Short: "Summarize a workflow document",
	Long:  `Reads a workflow.json document from the configured storage. The path is relative to the storage root.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log := newLogger(cfg)
		defer log.Close()

		blobs, err := newStorage(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

		c, err := workflow.NewWriter(blobs, log).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if showJSON {
			return printJSON(out, c.Summarize())
		}
		printSummary(out, c, args[0])
		if showSteps {
			fmt.Fprintln(out)
			printSteps(out, c)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showSteps, "steps", false, "also list every step")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(showCmd)
}
