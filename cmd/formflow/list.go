package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/schema"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded form definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			provider, err := schema.NewDirProvider(cfg.Forms.Dir, schema.WithProviderLogger(logger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range provider.IDs() {
				def, err := provider.Definition(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%d fields\n", id, def.Form.Title, len(def.Fields))
			}
			return nil
		},
	}
}
