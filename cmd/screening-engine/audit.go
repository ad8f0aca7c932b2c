// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/audit"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit collection health and import CSV decisions",
}

var auditCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report items missing identifiers, metadata, PDFs or decisions",
	RunE:  runAuditCheck,
}

func runAuditCheck(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("collection")
	verbose, _ := cmd.Flags().GetBool("verbose")

	report, err := eng.auditor.AuditCollection(context.Background(), name)
	if err != nil {
		return err
	}

	fmt.Printf("Audit of %q: %d item(s)\n", name, report.TotalItems)
	printAuditRule("missing identifier", report.MissingIdentifier, verbose)
	printAuditRule("missing title", report.MissingTitle, verbose)
	printAuditRule("missing abstract", report.MissingAbstract, verbose)
	printAuditRule("missing PDF", report.MissingPDF, verbose)
	printAuditRule("missing decision", report.MissingDecision, verbose)
	return nil
}

func printAuditRule(rule string, items []types.Item, verbose bool) {
	fmt.Printf("  %-20s %d\n", rule+":", len(items))
	if !verbose {
		return
	}
	for _, it := range items {
		fmt.Printf("    %s  %s\n", it.Key, it.Title)
	}
}

var auditImportCmd = &cobra.Command{
	Use:   "import-csv",
	Short: "Import reviewer decisions from a CSV export",
	Long: `Import-csv matches each CSV row against the library (key, then DOI,
then exact and fuzzy title) and upserts a decision note per matched row.
Without --force the run only counts what would happen; --dry-run keeps
--force runs read-only as well.`,
	RunE: runAuditImport,
}

func runAuditImport(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	path, _ := cmd.Flags().GetString("file")
	reviewer, _ := cmd.Flags().GetString("reviewer")
	phase, _ := cmd.Flags().GetString("phase")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	moveInc, _ := cmd.Flags().GetString("move-included")
	moveExc, _ := cmd.Flags().GetString("move-excluded")

	stats, err := eng.auditor.EnrichFromCSV(context.Background(), path, audit.EnrichOptions{
		Reviewer:     reviewer,
		Phase:        phase,
		DryRun:       dryRun,
		Force:        force,
		MoveIncluded: moveInc,
		MoveExcluded: moveExc,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Rows: %d  matched: %d  unmatched: %d  updated: %d  created: %d  skipped: %d  failed: %d\n",
		stats.Total, stats.Matched, stats.Unmatched, stats.Updated, stats.Created, stats.Skipped, stats.Failed)
	for _, title := range stats.UnmatchedTitles {
		fmt.Printf("  unmatched: %s\n", title)
	}
	if !force || dryRun {
		fmt.Println("No notes were written (use --force without --dry-run to apply).")
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d row(s) failed", stats.Failed)
	}
	return nil
}

func init() {
	auditCheckCmd.Flags().String("collection", "", "collection to audit (required)")
	auditCheckCmd.Flags().Bool("verbose", false, "list offending items per rule")
	auditCheckCmd.MarkFlagRequired("collection")
	auditCmd.AddCommand(auditCheckCmd)

	auditImportCmd.Flags().String("file", "", "CSV file to import (required)")
	auditImportCmd.Flags().String("reviewer", "", "reviewer persona for the imported decisions (required)")
	auditImportCmd.Flags().String("phase", types.PhaseTitleAbstract, "screening phase for the imported decisions")
	auditImportCmd.Flags().Bool("dry-run", false, "count outcomes without writing")
	auditImportCmd.Flags().Bool("force", false, "actually write decision notes")
	auditImportCmd.Flags().String("move-included", "", "move accepted items into this collection")
	auditImportCmd.Flags().String("move-excluded", "", "move rejected items into this collection")
	auditImportCmd.MarkFlagRequired("file")
	auditImportCmd.MarkFlagRequired("reviewer")
	auditCmd.AddCommand(auditImportCmd)

	rootCmd.AddCommand(auditCmd)
}
