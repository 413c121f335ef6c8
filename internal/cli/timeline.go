package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/session"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/timeline"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	Kind string
	ID   string
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the history of one entity",
		Long: `Print the events, linked notes and linked calendar events of an
entity in timestamp order. Legacy interactions that have not been migrated
appear as calendar events.

Examples:
  orbit timeline --kind contact --id p1
  orbit timeline --kind calendarEvent --id c1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "entity kind (contact, account, calendarEvent, ...)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "entity id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runTimeline(opts *TimelineOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	kind := document.Kind(opts.Kind)
	if !slices.Contains(document.Kinds(), kind) {
		return newFormatter(opts.RootOptions, cmd).Fail(ExitCommandError, ErrCodeInput,
			fmt.Sprintf("unknown kind %q: must be one of %v", opts.Kind, document.Kinds()), nil)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := e.session(ctx, session.WithoutMigration())
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	items := s.BuildTimeline(kind, opts.ID)
	if opts.Format == "json" {
		if items == nil {
			items = []timeline.Item{}
		}
		return e.formatter.Success(items)
	}

	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No history for %s %s.\n", kind, opts.ID)
		return nil
	}
	return timeline.Write(cmd.OutOrStdout(), items)
}
