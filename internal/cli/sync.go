package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var full bool
	var known []int64

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch everything changed since the last sync",
		Long: `Fetch the players, transactions and deletions recorded since the last
sync and remember the returned server timestamp for next time.

The first sync, or one run with --full, returns the whole ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var since int64
			if !full {
				var err error
				if since, err = cfg.LoadWatermark(); err != nil {
					return err
				}
			}
			if cfg.Verbose {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "syncing from %d\n", since)
			}

			req := map[string]any{"lastSyncTimestamp": since}
			if len(known) > 0 {
				req["knownPlayerIds"] = known
			}

			var result SyncResult
			if err := client.Post("/sync", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveWatermark(result.ServerTimestamp); err != nil {
				return fmt.Errorf("failed to save watermark: %w", err)
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Ignore the saved watermark and fetch everything")
	cmd.Flags().Int64SliceVar(&known, "known", nil, "Only report transactions and deletions for these player ids")

	return cmd
}

func newChangesCmd() *cobra.Command {
	var since int64

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Check whether anything changed since the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("since") {
				var err error
				if since, err = cfg.LoadWatermark(); err != nil {
					return err
				}
			}

			var result ChangesResult
			if err := client.Get("/players/changes?lastCheck="+strconv.FormatInt(since, 10), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&since, "since", 0, "Timestamp to check from (default: saved watermark)")

	return cmd
}
