package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	From        string
	FromBackend string
}

// MergeResult reports the converged document.
type MergeResult struct {
	LocalHash  string `json:"local_hash"`
	RemoteHash string `json:"remote_hash"`
	MergedHash string `json:"merged_hash"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge another device's document into this one",
		Long: `Load the document from another device's database and merge it into
the local one. Fields resolve last-writer-wins; deletions win over edits.
The merged document is stored as a local snapshot.

Running merge in both directions yields the same merged hash.

Examples:
  orbit merge --db ./phone.db --from ./laptop.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "path to the other device's database (required)")
	cmd.Flags().StringVar(&opts.FromBackend, "from-backend", "", "backend of --from (default: same as --backend)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	backend := opts.FromBackend
	if backend == "" {
		backend = e.cfg.DB.Backend
	}
	remoteStore, err := OpenStore(backend, opts.From)
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer remoteStore.Close()

	remote, _, err := e.loader().Load(ctx, remoteStore)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, fmt.Errorf("load %s: %w", opts.From, err))
	}

	s, err := e.session(ctx)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	var result MergeResult
	if result.LocalHash, err = s.Document().Hash(); err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	if result.RemoteHash, err = remote.Hash(); err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	merged, err := s.Merge(ctx, remote)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	if result.MergedHash, err = merged.Hash(); err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	if opts.Format == "json" {
		return e.formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Merged %s\n", opts.From)
	fmt.Fprintf(w, "  Local:  %s\n", result.LocalHash)
	fmt.Fprintf(w, "  Remote: %s\n", result.RemoteHash)
	fmt.Fprintf(w, "  Merged: %s\n", result.MergedHash)
	return nil
}
