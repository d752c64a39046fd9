package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/care-contact/directory-cli/internal/store"
)

var (
	searchQuery   string
	searchCity    string
	searchState   string
	searchService string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored practices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		practices, err := s.SearchPractices(ctx, store.SearchFilter{
			Query:   searchQuery,
			City:    searchCity,
			State:   searchState,
			Service: searchService,
			Limit:   searchLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(practices)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "match against name or city")
	searchCmd.Flags().StringVar(&searchCity, "city", "", "filter by city")
	searchCmd.Flags().StringVar(&searchState, "state", "", "filter by state code")
	searchCmd.Flags().StringVar(&searchService, "service", "", "filter by service keyword")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default 100)")
	rootCmd.AddCommand(searchCmd)
}
