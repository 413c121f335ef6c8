package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/migration"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that no legacy record is left unmigrated",
		Long: `Load the document without migrating it and list every legacy
interaction or audit that has no calendar event, and every link that
still points at an interaction.

Exit codes:
  0 - Fully migrated
  1 - Issues found
  2 - Command error`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	doc, _, err := e.loader().Load(ctx, e.store)
	if err != nil {
		return e.failErr(ExitFailure, ErrCodeStore, err)
	}

	issues := migration.ValidateMigration(doc)
	result := ValidationResult{Valid: len(issues) == 0}
	for _, is := range issues {
		result.Issues = append(result.Issues, is.String())
	}

	if result.Valid {
		if opts.Format == "json" {
			return e.formatter.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Validation passed")
		return nil
	}

	if opts.Format == "json" {
		return e.formatter.Fail(ExitFailure, ErrCodeMigration,
			fmt.Sprintf("%d migration issue(s)", len(issues)), result.Issues)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✗ Validation failed with %d issue(s):\n", len(issues))
	for _, msg := range result.Issues {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	return NewExitError(ExitFailure, "validation failed")
}
