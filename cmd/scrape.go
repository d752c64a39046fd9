package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/care-contact/directory-cli/internal/crawl"
	"github.com/care-contact/directory-cli/internal/extract"
	"github.com/care-contact/directory-cli/internal/fetch"
	"github.com/care-contact/directory-cli/internal/model"
	"github.com/care-contact/directory-cli/internal/reconcile"
)

var (
	scrapeMode     string
	scrapeScope    string
	scrapeMaxPages int
	scrapeMaxDepth int
	scrapeSave     bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape a practice site and print the extracted records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine := crawl.New(cfg.Crawl, fetch.New(cfg.Fetch), extract.NewVocab(cfg.Vocab))
		result, meta, err := engine.Run(ctx, crawl.Request{
			URL:      args[0],
			Mode:     model.Mode(scrapeMode),
			Scope:    model.Scope(scrapeScope),
			MaxPages: scrapeMaxPages,
			MaxDepth: scrapeMaxDepth,
		})
		if err != nil {
			return err
		}

		if scrapeSave {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			practices, clinicians, err := reconcile.New(s).SaveResult(ctx, result)
			if err != nil {
				return err
			}
			meta.Saved = true
			zap.L().Info("saved",
				zap.Int("practices", practices),
				zap.Int("clinicians", clinicians),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"data": result,
			"meta": meta,
		})
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeMode, "mode", "single", "crawl mode: single|directory|pagination")
	scrapeCmd.Flags().StringVar(&scrapeScope, "scope", "both", "record scope: both|practices|clinicians")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "page budget (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeMaxDepth, "max-depth", 0, "depth budget (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeSave, "save", false, "reconcile results into the store")
	rootCmd.AddCommand(scrapeCmd)
}
