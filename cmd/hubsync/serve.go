package hubsync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homemade/hubsync/server"
	"github.com/homemade/hubsync/sync"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook relay server",
		Long: "Run the server that receives HubSpot contact webhooks and relays each contact " +
			"from the source portal to the destination portal.",
		Example: "  hubsync serve --mapping mapping.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []sync.ConfigOption
			if mappingPath != "" {
				opts = append(opts, sync.ConfigWithMappingPath(mappingPath))
			}
			cfg, err := sync.LoadConfig(opts...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return server.RunConfig(cfg)
		},
	}
	return cmd
}
