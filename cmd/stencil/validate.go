package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd(_ *globalOptions) *cobra.Command {
	var (
		asJSON    bool
		maxIssues int
		revision  string
	)
	cmd := &cobra.Command{
		Use:   "validate <template>",
		Short: "Check a template for directive errors",
		Long: `Check every directive of a template and report all problems found.
Exits with status 2 when the template has issues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			result, err := stencil.ValidateTemplate(stencil.ValidateTemplateInput{
				Template:           raw,
				TemplateRevisionID: revision,
				MaxIssues:          maxIssues,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				printValidation(out, args[0], result)
			}
			if !result.Valid {
				return &exitError{code: 2, err: fmt.Errorf("%s: %d issue(s)", args[0], result.Summary.ErrorCount)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&maxIssues, "max-issues", 0, "maximum issues to report (0 = all)")
	cmd.Flags().StringVar(&revision, "revision", "", "template revision id echoed in the metadata")
	return cmd
}

func printValidation(w io.Writer, name string, result stencil.ValidationResult) {
	if result.Valid {
		fmt.Fprintf(w, "%s: ok (%d directives)\n", name, result.Summary.CheckedDirectives)
		return
	}
	for _, issue := range result.Issues {
		loc := issue.Token.Location
		fmt.Fprintf(w, "%s:%s#%d: %s: %s\n", name, loc.Part, loc.Ordinal, issue.Code, issue.Message)
	}
	if result.IssuesTruncated {
		fmt.Fprintf(w, "... %d more\n", result.Summary.ErrorCount-result.Summary.ReturnedIssueCount)
	}
}

func newRefsCmd(_ *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "refs <template>",
		Short: "List the names a template uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			result, err := stencil.ExtractReferences(stencil.ExtractReferencesInput{Template: raw})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, result)
			}
			for _, ref := range result.References {
				expr := ref.Expression
				if expr == "" {
					expr = ref.Raw
				}
				fmt.Fprintf(out, "%-8s %s\t%s#%d\n", ref.Kind, expr, ref.Location.Part, ref.Location.Ordinal)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
