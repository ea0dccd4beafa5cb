package nearby

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/cmd/output"
	"github.com/tphakala/lifer/internal/api"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/observation"
	"github.com/tphakala/lifer/internal/scoring"
)

type options struct {
	lat, lng    float64
	radiusMiles float64
	back        int
	user        string
	limit       int
	asJSON      bool
}

// Command creates the nearby command that prints scored observations around a point.
func Command(ctx *app.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List recent nearby observations ranked for you",
		Long: `Aggregate recent and notable observations around a point and rank them.
With --user the stored life list marks lifers, and the user's saved
location and radius apply when --lat, --lng or --radius are omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			hasLat, hasLng := flags.Changed("lat"), flags.Changed("lng")
			if hasLat != hasLng || (!hasLat && opts.user == "") {
				return fmt.Errorf("--lat and --lng are required unless --user has a saved location")
			}

			return app.Run(ctx, func(a *app.App) error {
				q := observation.Query{
					Lat:          opts.lat,
					Lng:          opts.lng,
					RadiusMiles:  opts.radiusMiles,
					LookbackDays: opts.back,
				}
				if !hasLat || !flags.Changed("radius") {
					if err := applySaved(cmd, a, opts.user, &q, !hasLat); err != nil {
						return err
					}
				}

				spin := output.StartSpinner(cmd.ErrOrStderr(), "Fetching nearby observations")
				scored, err := a.Finder.ScoredForUser(cmd.Context(), opts.user, q)
				spin.Stop()
				if err != nil {
					return err
				}
				if opts.limit > 0 && len(scored) > opts.limit {
					scored = scored[:opts.limit]
				}
				if opts.asJSON {
					return output.JSON(cmd.OutOrStdout(), scored)
				}
				return printTable(cmd, scored)
			})
		},
	}

	setupFlags(cmd, &opts)

	return cmd
}

// applySaved fills q from the user's saved settings. The saved radius
// replaces the default one; the saved location is required when needLocation.
func applySaved(cmd *cobra.Command, a *app.App, user string, q *observation.Query, needLocation bool) error {
	if user == "" {
		return nil
	}
	saved, err := a.Finder.Settings(cmd.Context(), user)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("radius") {
		q.RadiusMiles = saved.RadiusMiles
	}
	if !needLocation {
		return nil
	}
	if !saved.HasLocation() {
		return fmt.Errorf("user %s has no saved location, pass --lat and --lng", user)
	}
	q.Lat, q.Lng = *saved.Lat, *saved.Lng
	return nil
}

// setupFlags configures flags specific to the nearby command.
func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude of the search center")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "Longitude of the search center")
	cmd.Flags().Float64VarP(&opts.radiusMiles, "radius", "r", api.DefaultRadiusMiles, "Search radius in miles")
	cmd.Flags().IntVarP(&opts.back, "back", "b", api.DefaultBackDays, "Days of observations to include, 1 to 30")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User whose life list marks lifers")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Show at most this many species")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
}

func printTable(cmd *cobra.Command, scored []scoring.ScoredObservation) error {
	if len(scored) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No observations found.")
		return err
	}

	table := output.NewTable(cmd.OutOrStdout(), "SCORE", "SPECIES", "WHY", "MILES", "SEEN", "LOCATION")
	for i := range scored {
		s := &scored[i]
		reasons := make([]string, 0, len(s.Reasons))
		for _, r := range s.Reasons {
			reasons = append(reasons, scoring.FormatReason(r))
		}
		table.Row(
			strconv.FormatFloat(s.Score, 'f', 0, 64),
			s.CommonName,
			output.OrDash(strings.Join(reasons, ", ")),
			strconv.FormatFloat(s.DistanceMiles, 'f', 1, 64),
			s.ObservedAt,
			output.OrDash(s.LocationName),
		)
	}
	return table.Flush()
}
