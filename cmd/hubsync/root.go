package hubsync

import "github.com/spf13/cobra"

var mappingPath string

// NewRootCmd returns the Cobra entrypoint for the relay.
func NewRootCmd() *cobra.Command {
	mappingPath = ""
	root := &cobra.Command{
		Use:   "hubsync",
		Short: "HubSpot portal-to-portal contact relay",
		Long: "Hubsync receives HubSpot contact webhooks, fetches the full contact from the " +
			"source portal, maps its property set and upserts the contact into the destination portal.",
		Example: "  hubsync serve\n" +
			"  hubsync serve --mapping mapping.yaml\n" +
			"  hubsync mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&mappingPath, "mapping", mappingPath, "Path to a mapping YAML overriding the embedded defaults")
	root.AddCommand(newServeCmd())
	root.AddCommand(newMappingsCmd())
	return root
}
