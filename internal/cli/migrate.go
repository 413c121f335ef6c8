package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/migration"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	DryRun bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert legacy interactions and audits into calendar events",
		Long: `Rewrite legacy interaction and audit records as calendar events and
repoint interaction links at them. Synthetic events are appended to the
log; their ids are derived from the legacy record, so running the
migration again, or on another device, appends nothing new.

Exit codes:
  0 - Every pending record migrated
  1 - One or more records failed (see the report)
  2 - Command error

Examples:
  orbit migrate --db ./orbit.db
  orbit migrate --db ./orbit.db --dry-run --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would migrate without appending events")

	return cmd
}

func runMigrate(opts *MigrateOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var rep *migration.Report
	if opts.DryRun {
		doc, _, err := e.loader().Load(ctx, e.store)
		if err != nil {
			return e.failErr(ExitFailure, ErrCodeStore, err)
		}
		runner := migration.NewRunner(e.dispatcher(),
			migration.WithLogger(e.logger),
			migration.WithMetrics(e.metrics),
		)
		if _, rep, err = runner.Run(ctx, doc, nil, e.deviceID); err != nil {
			return e.failErr(ExitFailure, ErrCodeMigration, err)
		}
	} else {
		s, err := e.session(ctx)
		if err != nil {
			return e.failErr(ExitFailure, ErrCodeMigration, err)
		}
		rep = s.MigrationReport()
	}

	failed := len(rep.Errors) > 0
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: rep}
		if failed {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeMigration, Message: fmt.Sprintf("%d record(s) failed to migrate", len(rep.Errors))}
		}
		if err := e.formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputMigrateText(cmd, rep, opts.DryRun)
	}

	if failed {
		return NewExitError(ExitFailure, "migration incomplete")
	}
	return nil
}

func outputMigrateText(cmd *cobra.Command, rep *migration.Report, dryRun bool) {
	w := cmd.OutOrStdout()

	verb := "Migrated"
	if dryRun {
		verb = "Would migrate"
	}
	fmt.Fprintf(w, "%s %d interaction(s), %d audit(s), %d link(s)\n",
		verb, rep.MigratedInteractions, rep.MigratedAudits, rep.MigratedLinks)

	if len(rep.InteractionIDs) > 0 {
		fmt.Fprintf(w, "  Interactions: %s\n", strings.Join(rep.InteractionIDs, ", "))
	}
	if len(rep.AuditIDs) > 0 {
		fmt.Fprintf(w, "  Audits: %s\n", strings.Join(rep.AuditIDs, ", "))
	}
	if len(rep.LinkIDs) > 0 {
		fmt.Fprintf(w, "  Links: %s\n", strings.Join(rep.LinkIDs, ", "))
	}

	if len(rep.Errors) > 0 {
		fmt.Fprintf(w, "\n✗ %d error(s):\n", len(rep.Errors))
		for _, msg := range rep.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
}
