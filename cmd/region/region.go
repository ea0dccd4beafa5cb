// Package region holds commands that query reference data for a place.
package region

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/internal/app"
)

// Command creates the region parent command
func Command(ctx *app.Context) *cobra.Command {
	regionCmd := &cobra.Command{
		Use:   "region",
		Short: "Query species lists and hotspots for a place",
	}

	regionCmd.AddCommand(SpeciesCommand(ctx), HotspotsCommand(ctx))

	return regionCmd
}
