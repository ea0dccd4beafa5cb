package region

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/cmd/output"
	"github.com/tphakala/lifer/internal/api"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/observation"
)

// regionCodePattern matches country, subnational1 and subnational2 codes such as US, US-CA, US-CA-001.
var regionCodePattern = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]{1,3}){0,2}$`)

// SpeciesCommand creates the species subcommand
func SpeciesCommand(ctx *app.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "species [region-code]",
		Short: "Print the species codes ever reported in a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(strings.TrimSpace(args[0]))
			if !regionCodePattern.MatchString(code) {
				return fmt.Errorf("invalid region code %q, expected a form like US, US-CA or US-CA-001", args[0])
			}

			return app.Run(ctx, func(a *app.App) error {
				codes, err := a.Finder.RegionSpecies(cmd.Context(), code)
				if err != nil {
					return err
				}
				if asJSON {
					return output.JSON(cmd.OutOrStdout(), codes)
				}
				w := cmd.OutOrStdout()
				for _, c := range codes {
					if _, err := fmt.Fprintln(w, c); err != nil {
						return err
					}
				}
				_, err = fmt.Fprintf(w, "%d species in %s\n", len(codes), code)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of plain text")

	return cmd
}

// HotspotsCommand creates the hotspots subcommand
func HotspotsCommand(ctx *app.Context) *cobra.Command {
	var (
		lat, lng, radius float64
		asJSON           bool
	)

	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Print public hotspots around a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
				return fmt.Errorf("--lat and --lng are required")
			}
			q := observation.Query{Lat: lat, Lng: lng, RadiusMiles: radius}

			return app.Run(ctx, func(a *app.App) error {
				hotspots, err := a.Finder.Hotspots(cmd.Context(), q)
				if err != nil {
					return err
				}
				if asJSON {
					return output.JSON(cmd.OutOrStdout(), hotspots)
				}
				table := output.NewTable(cmd.OutOrStdout(), "ID", "NAME", "SPECIES", "LATEST")
				for i := range hotspots {
					h := &hotspots[i]
					species := "-"
					if h.NumSpeciesAllTime != nil {
						species = strconv.Itoa(*h.NumSpeciesAllTime)
					}
					table.Row(h.LocationID, h.LocationName, species, output.OrDash(h.LatestObservedAt))
				}
				return table.Flush()
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the search center")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the search center")
	cmd.Flags().Float64VarP(&radius, "radius", "r", api.DefaultRadiusMiles, "Search radius in miles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
