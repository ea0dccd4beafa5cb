package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/internal/app"
)

// Command creates a new cobra.Command to print build metadata.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ctx.Build.String())
			return err
		},
	}
}
