package settings

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/cmd/output"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/profile"
)

// Command creates the settings command that shows or changes a user's
// saved location and search radius.
func Command(ctx *app.Context) *cobra.Command {
	var (
		user     string
		lat, lng float64
		radius   float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change a user's saved location and radius",
		Long: `Without --lat, --lng or --radius the saved settings are printed.
A saved location is used by nearby when --lat and --lng are omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var update profile.Update
			if flags.Changed("lat") {
				update.Lat = &lat
			}
			if flags.Changed("lng") {
				update.Lng = &lng
			}
			if flags.Changed("radius") {
				update.RadiusMiles = &radius
			}

			return app.Run(ctx, func(a *app.App) error {
				var (
					s   profile.Settings
					err error
				)
				if update.IsEmpty() {
					s, err = a.Finder.Settings(cmd.Context(), user)
				} else {
					s, err = a.Finder.UpdateSettings(cmd.Context(), user, &update)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return output.JSON(cmd.OutOrStdout(), s)
				}
				return printSettings(cmd, &s)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User whose settings to show or change")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the home location")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the home location")
	cmd.Flags().Float64VarP(&radius, "radius", "r", profile.DefaultRadiusMiles, "Default search radius in miles, 1 to 25")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printSettings(cmd *cobra.Command, s *profile.Settings) error {
	location := "-"
	if s.HasLocation() {
		location = strconv.FormatFloat(*s.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(*s.Lng, 'f', -1, 64)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Location: %s\nRadius:   %s miles\n",
		location, strconv.FormatFloat(s.RadiusMiles, 'f', -1, 64))
	return err
}
