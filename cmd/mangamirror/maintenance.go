package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"mangamirror/internal/bulk"
	"mangamirror/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full maintenance cycle (domain check, sync, dedup) and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.sched.RunPipeline(cmd.Context())
	},
}

var checkDomainCmd = &cobra.Command{
	Use:   "check-domain",
	Short: "Probe the source domain and follow a migration if one happened",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		newDomain, err := a.sched.Detector.Check(cmd.Context())
		if err != nil {
			return err
		}
		if newDomain == "" {
			fmt.Println("domain still up")
		} else {
			fmt.Println("domain moved to", newDomain)
		}
		return nil
	},
}

var migrateSlugsCmd = &cobra.Command{
	Use:   "migrate-slugs",
	Short: "Normalize legacy slugs across the whole catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		moved, conflicts, err := a.migrate.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d moved, %d conflicts\n", moved, conflicts)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Collapse duplicate titles and delete their content",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.sched.Reconciler.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d duplicates removed\n", removed)
		return nil
	},
}

var deepCleanCmd = &cobra.Command{
	Use:   "deep-clean",
	Short: "Sweep orphaned chapter content through the rate-limited mutator",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.sched.RunDeepClean(cmd.Context())
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete EVERY entry in the catalog store",
	Long: `Deletes every title, chapter content blob and config scalar through
the rate-limited mutator, finding the fastest deletion rate the store
provider tolerates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("WARNING: this will delete all %d entries in the store!\n", len(keys))
		if !clearYes {
			fmt.Println("Press Ctrl+C to cancel, or wait 5 seconds to continue...")
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(5 * time.Second):
			}
		}

		raw := make([]string, 0, len(keys))
		for _, k := range keys {
			raw = append(raw, k.String())
		}

		mut := bulk.NewMutator()
		res, err := mut.Run(cmd.Context(), raw, func(ctx context.Context, s string) error {
			k, err := store.ParseKey(s)
			if err != nil {
				return err
			}
			return a.store.DeleteKey(ctx, k)
		})
		if err != nil {
			return err
		}
		log.Printf("deleted %d entries (%d errors, %d abandoned)", res.Processed, res.Errors, res.Abandoned)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the 5 second abort window")
	rootCmd.AddCommand(syncCmd, checkDomainCmd, migrateSlugsCmd, reconcileCmd, deepCleanCmd, clearCmd)
}
