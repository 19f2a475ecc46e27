package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mangamirror",
	Short: "Scrape-and-sync mirror of a serialized publication catalog",
	Long: `mangamirror keeps a local catalog of serialized titles and their
chapters in sync with a third-party source site, following the site
across domain migrations and deduplicating the catalog as it drifts.`,
	SilenceUsage: true,
}
