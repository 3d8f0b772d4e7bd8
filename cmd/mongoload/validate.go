package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TFMV/mongoload/integrations/mongodb"
)

// newValidateCommand creates the validate-config command.
func newValidateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check the merged configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(true)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "backend\t%s\n", cfg.Backend)
			if cfg.Backend == "mongo" {
				fmt.Fprintf(tw, "uri\t%s\n", mongodb.RedactURI(cfg.Mongo.URI))
			}
			fmt.Fprintf(tw, "namespace\t%s.%s\n", cfg.Mongo.Database, cfg.Mongo.Collection)
			fmt.Fprintf(tw, "sample\t%s (%s, %s)\n", cfg.Workload.SamplePath, cfg.Workload.Reader, cfg.Workload.RowPolicy)
			fmt.Fprintf(tw, "target count\t%d\n", cfg.Workload.TargetCount)
			fmt.Fprintf(tw, "mode\t%s\n", cfg.Insert.Mode)
			fmt.Fprintf(tw, "timeout\t%s\n", cfg.Insert.Timeout)
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "Configuration is valid.")
			return nil
		},
	}
}
