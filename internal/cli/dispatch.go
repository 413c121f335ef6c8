package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	File string
}

// DispatchResult is printed after a successful batch.
type DispatchResult struct {
	Dispatched int    `json:"dispatched"`
	Hash       string `json:"hash"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Validate, fold and append a batch of events",
		Long: `Read a YAML batch of events, validate every event, fold them into the
document and append them to the log. Nothing is appended if any event is
rejected.

Batch format:
  events:
    - type: contact.created
      entityId: p1
      timestamp: "2024-01-01T09:00:00Z"
      payload: {firstName: Ada}

Exit codes:
  0 - Batch applied
  1 - Batch rejected (the error code names the reason)
  2 - Command error (file not found, malformed YAML)

Examples:
  orbit dispatch --file batch.yaml
  cat batch.yaml | orbit dispatch --file -`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML batch file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var r io.Reader = cmd.InOrStdin()
	if opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return e.formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
		}
		defer f.Close()
		r = f
	}

	events, err := event.DecodeYAML(r, e.deviceID)
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	e.formatter.VerboseLog("Decoded %d event(s) from %s", len(events), opts.File)

	s, err := e.session(ctx)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	res := s.Dispatch(ctx, events)
	if !res.Success {
		code := ErrCodeStore
		if res.Error != nil && res.Error.Code != "" {
			code = string(res.Error.Code)
		}
		return e.formatter.Fail(ExitFailure, code, res.Err.Error(), res.Error)
	}

	h, err := res.Document.Hash()
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}
	result := DispatchResult{Dispatched: len(events), Hash: h}
	if opts.Format == "json" {
		return e.formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Dispatched %d event(s)\n  Hash: %s\n", result.Dispatched, result.Hash)
	return nil
}
