package main

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/amy-epw-etl/internal/adapter/isdlite"
	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/spf13/cobra"
)

func newGapsCommand(a *app) *cobra.Command {
	var maxInterpolate, maxImpute int

	cmd := &cobra.Command{
		Use:   "gaps <feed>",
		Short: "Show how each gap in a station-year feed would be repaired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := domain.NewRepairPolicy(maxInterpolate, maxImpute)
			if err != nil {
				return withCode(exitFailure, err)
			}
			ref, err := domain.ParseReference(args[0])
			if err != nil {
				return withCode(exitFailure, err)
			}

			ctx := cmd.Context()
			loader := isdlite.NewFileLoader()
			current, err := loader.Load(ctx, ref.Current)
			if err != nil {
				return withCode(exitFailure, err)
			}
			subsequent, err := loader.Load(ctx, ref.Subsequent)
			switch {
			case errors.Is(err, domain.ErrFeedNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "no %d feed at %s; December gaps are classified without it\n", ref.Year+1, ref.Subsequent.Path)
				subsequent = nil
			case err != nil:
				return withCode(exitFailure, err)
			}

			var repairs []domain.GapRepair
			for _, f := range domain.TrackedFields {
				series, err := current.SeriesFor(f)
				if err != nil {
					return withCode(exitFailure, err)
				}
				var next *domain.AnnualSeries
				if subsequent != nil {
					next, _ = subsequent.SeriesFor(f)
				}
				repairs = append(repairs, domain.Classify(policy, series, next)...)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGaps(repairs, ref.Year))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxInterpolate, "max-records-to-interpolate", domain.DefaultMaxInterpolate, "Longest gap filled by linear interpolation")
	cmd.Flags().IntVar(&maxImpute, "max-records-to-impute", domain.DefaultMaxImpute, "Longest gap filled by two-week imputation")
	return cmd
}
