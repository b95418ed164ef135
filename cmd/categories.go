package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/guidepost/internal/database"
	"github.com/glefebvre/guidepost/internal/report"
	"github.com/glefebvre/guidepost/internal/store"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show the category table and the undefined-category ledger",
	Long: `Print every canonical category with its usage count and sample title,
most used first, followed by the genres seen in feeds that have no category
record yet and the first programme each appeared on.`,
	Run: func(cmd *cobra.Command, args []string) {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(formatFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --format: %v\n", err)
			os.Exit(1)
		}

		db := openDatabase()
		defer database.Close()

		table, err := store.NewCategoryStore(db).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load categories: %v\n", err)
			os.Exit(1)
		}

		if err := report.Categories(os.Stdout, format, table.Records(), table.Undefined()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write categories: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	categoriesCmd.Flags().String("format", "auto", "output format: auto, table or json")
}
