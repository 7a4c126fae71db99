package hubsync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homemade/hubsync/sync"
)

func newMappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mappings",
		Short:   "Print the property mapping table as CSV",
		Example: "  hubsync mappings --mapping mapping.yaml > mappings.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []sync.ConfigOption
			if mappingPath != "" {
				opts = append(opts, sync.ConfigWithMappingPath(mappingPath))
			}
			cfg, err := sync.LoadConfig(opts...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			doc := sync.GenerateMappingDocumentation(cfg.Mapping)
			csv, err := doc.FormatCSV()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), csv)
			return nil
		},
	}
	return cmd
}
