package lifelist

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/cmd/output"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/lifelist"
)

// Command creates the lifelist command that prints a user's stored life list.
func Command(ctx *app.Context) *cobra.Command {
	var (
		user    string
		sort    string
		search  string
		summary bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "lifelist",
		Short: "Print a stored life list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := lifelist.ParseSortMode(sort)
			if err != nil {
				return err
			}

			return app.Run(ctx, func(a *app.App) error {
				if summary {
					s, err := a.Finder.ImportSummary(cmd.Context(), user)
					if err != nil {
						return err
					}
					return output.JSON(cmd.OutOrStdout(), s)
				}

				view, err := a.Finder.LifeList(cmd.Context(), user, mode, search)
				if err != nil {
					return err
				}
				if asJSON {
					return output.JSON(cmd.OutOrStdout(), view)
				}
				return printTable(cmd, view.Species)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User whose life list to print")
	cmd.Flags().StringVarP(&sort, "sort", "s", string(lifelist.SortDateDesc), "Order: date-desc, date-asc, alpha-asc or alpha-desc")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Only species whose common or scientific name contains this text")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print import history instead of species")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printTable(cmd *cobra.Command, entries []lifelist.Entry) error {
	table := output.NewTable(cmd.OutOrStdout(), "SPECIES", "SCIENTIFIC NAME", "CODE", "FIRST SEEN", "LAST SEEN", "COUNT")
	for i := range entries {
		e := &entries[i]
		table.Row(
			e.CommonName,
			e.ScientificName,
			output.OrDash(e.SpeciesCode),
			refDate(e.FirstObservation),
			refDate(e.LastObservation),
			strconv.Itoa(e.ObservationCount),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d species\n", len(entries))
	return err
}

func refDate(ref *lifelist.ObservationRef) string {
	if ref == nil {
		return "-"
	}
	return output.OrDash(ref.Date)
}
