package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample Lagos data set",
	Long:  "Inserts the sample buckets and properties. Nothing is written when the store already holds buckets.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := app.Admin.Seed(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create store indexes and rebuild the bucket search index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := app.Admin.BuildIndexes(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var (
	statsPeriod  string
	statsLimit   int
	statsBuckets bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the bucket statistics report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := app.Buckets.Stats(cmd.Context(), statsPeriod, statsBuckets, statsLimit)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), report)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <location> <lat> <lng>",
	Short: "Resolve a location to its geo-bucket, creating one when nothing matches",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("lat: %w", err)
		}
		lng, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("lng: %w", err)
		}
		res, err := app.Admin.Resolve(cmd.Context(), args[0], lat, lng)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var normalizeCorpus bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize <location>",
	Short: "Show the normalized key for a location name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Buckets.Normalize(cmd.Context(), args[0], normalizeCorpus)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <bucket-id>",
	Short: "List buckets that likely describe the same place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.Buckets.SimilarBuckets(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <bucket-id>",
	Short: "Delete a geo-bucket that owns no properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Admin.DeleteBucket(cmd.Context(), args[0]); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsPeriod, "time-period", "", "only count properties created in the last <N>d")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 50, "maximum buckets in the per-bucket table")
	statsCmd.Flags().BoolVar(&statsBuckets, "include-buckets", true, "include the per-bucket table")
	normalizeCmd.Flags().BoolVar(&normalizeCorpus, "with-corpus", false, "drop words frequent across stored bucket names")
}
