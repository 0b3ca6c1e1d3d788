package cmd

import (
	"fmt"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/lib"
	"github.com/spf13/cobra"
)

var query string
var filterCategories []string
var onlyActive bool

// getTargetsCmd represents the get targets command
var getTargetsCmd = &cobra.Command{
	Use:     "targets",
	Aliases: []string{"target", "t"},
	Short:   "List monitoring targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := db.TargetFilter{
			Limit: limit,
		}
		if query != "" {
			filter.Query = query
		}
		for _, c := range filterCategories {
			filter.Categories = append(filter.Categories, db.TargetCategory(c))
		}
		if onlyActive {
			filter.Active = &onlyActive
		}

		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		items, _, err := store.ListTargets(filter)
		if err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(format)
		if err != nil {
			return err
		}

		formattedOutput, err := lib.FormatOutput(items, formatType)
		if err != nil {
			return err
		}

		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	getCmd.AddCommand(getTargetsCmd)
	getTargetsCmd.PersistentFlags().StringVarP(&query, "query", "q", "", "Search query")
	getTargetsCmd.PersistentFlags().StringSliceVarP(&filterCategories, "category", "c", nil, "Filter by categories")
	getTargetsCmd.PersistentFlags().BoolVar(&onlyActive, "active", false, "Only active targets")
}
