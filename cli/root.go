package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trimborder/logging"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trimborder",
		Short: "Add a print border around the TrimBox of PDF pages",
		Long: `Trimborder grows every page by a border around its TrimBox, moves the
cut marks out with it and stretches the edge artwork into the new band.

Settings come from the environment (BORDER_*, STRETCH_MODE, ...), an
optional YAML profile and command line flags, in that order.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			logging.Setup()
		},
	}

	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newInspectCmd())

	return cmd
}
