package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
)

// ReplayResult holds the replay result.
type ReplayResult struct {
	Events        int    `json:"events"`
	Folded        int    `json:"folded"`
	SnapshotAt    string `json:"snapshot_at,omitempty"`
	Hash          string `json:"hash"`
	Deterministic bool   `json:"deterministic"`

	// RebuildHash is the hash of the log folded without snapshots. It
	// differs from Hash once a merge from another device is snapshotted.
	RebuildHash        string          `json:"rebuild_hash"`
	SnapshotMatchesLog bool            `json:"snapshot_matches_log"`
	Metrics            metrics.Summary `json:"metrics"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the event log and verify determinism",
		Long: `Rebuild the document from the latest snapshot and the event log.

The document is loaded twice from the latest snapshot and the two hashes
must agree. It is also rebuilt from the log alone; that hash matches
unless a merge from another device was snapshotted.

Exit codes:
  0 - Replay is deterministic
  1 - Hashes differ, or an event could not be folded
  2 - Command error (database not found, etc.)

Examples:
  orbit replay --db ./orbit.db
  orbit replay --db ./orbit.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ld := e.loader()
	first, err := ld.LoadState(ctx, e.store)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	second, err := ld.LoadState(ctx, e.store)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	rebuilt, err := ld.Rebuild(ctx, e.store)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	h1, err := first.Document.Hash()
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	h2, err := second.Document.Hash()
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	h3, err := rebuilt.Document.Hash()
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	summary, err := e.metrics.Summarize()
	if err != nil {
		return e.failErr(ExitCommandError, ErrCodeStore, err)
	}

	result := ReplayResult{
		Events:        len(first.Events),
		Folded:        first.Folded,
		SnapshotAt:    first.BaseAt,
		Hash:          h1,
		Deterministic: h1 == h2,

		RebuildHash:        h3,
		SnapshotMatchesLog: h1 == h3,
		Metrics:            summary,
	}

	if opts.Format == "json" {
		if !result.Deterministic {
			if err := e.formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeDeterminism, Message: "determinism verification failed"},
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return e.formatter.Success(result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d event(s)\n", result.Events)
	if result.SnapshotAt != "" {
		fmt.Fprintf(w, "  Snapshot: %s (%d event(s) folded on top)\n", result.SnapshotAt, result.Folded)
	}
	fmt.Fprintf(w, "  Hash: %s\n", result.Hash)

	if !result.SnapshotMatchesLog {
		fmt.Fprintln(w, "  Note: snapshot includes merged state not in the local log")
	}

	if verbose {
		fmt.Fprintf(w, "  Rebuild hash: %s\n", result.RebuildHash)
		fmt.Fprintf(w, "  Replays: %d\n", result.Metrics.Replays)
		for _, t := range result.Metrics.SortedTypes() {
			fmt.Fprintf(w, "  %s: %d\n", t, result.Metrics.EventsFolded[t])
		}
	}
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
