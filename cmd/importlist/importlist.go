package importlist

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/cmd/output"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
)

// Command creates the import command that loads an eBird CSV export into a user's life list.
func Command(ctx *app.Context) *cobra.Command {
	var (
		user       string
		importType string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import an eBird life list or My eBird Data export",
		Long: `Parse an eBird CSV export and merge it into a user's stored life list.

Types:
  first-seen  keep the earliest sighting per species (life list export)
  last-seen   keep the latest sighting per species (life list export)
  my-data     replace the list from a full My eBird Data export`,
		Args: cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := lifelist.ParseImportType(importType)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(err).
					Component("cli").
					Category(errors.CategoryFileIO).
					Context("path", args[0]).
					Build()
			}

			return app.Run(ctx, func(a *app.App) error {
				parsed, err := a.Finder.ImportCSV(raw)
				if err != nil {
					return err
				}
				spin := output.StartSpinner(cmd.ErrOrStderr(), "Matching species against the eBird taxonomy")
				stats, err := a.Finder.MergeImport(cmd.Context(), user, kind, parsed)
				spin.Stop()
				if err != nil {
					return err
				}
				if asJSON {
					return output.JSON(cmd.OutOrStdout(), stats)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d species from %d observations (%s format, %d rows skipped).\n",
					stats.SpeciesCount, stats.TotalObservations, parsed.Format, stats.SkippedRows)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User whose life list receives the import")
	cmd.Flags().StringVarP(&importType, "type", "t", string(lifelist.ImportFirstSeen), "Import type: first-seen, last-seen or my-data")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print import statistics as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
