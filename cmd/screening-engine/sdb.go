// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sdbCmd = &cobra.Command{
	Use:   "sdb",
	Short: "Inspect, edit and upgrade decision records",
	Long: `Sdb works directly on the screening decision records embedded in item
notes: inspect lists them, edit changes fields of one record in place, and
upgrade rewrites legacy records at the current schema version.`,
}

var sdbInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the decision records attached to an item",
	RunE:  runSDBInspect,
}

func runSDBInspect(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	key, _ := cmd.Flags().GetString("key")
	entries, err := eng.sdb.Inspect(context.Background(), key)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No decision records on %s.\n", key)
		return nil
	}

	fmt.Printf("%-10s %-24s %-15s %-15s %-22s %s\n", "Decision", "Criteria/Reason", "Persona", "Phase", "Timestamp", "Note")
	for _, e := range entries {
		reason := strings.Join(e.Record.ReasonCode, ",")
		if e.Record.ReasonText != "" {
			reason += " (" + truncate(e.Record.ReasonText, 30) + ")"
		}
		fmt.Printf("%-10s %-24s %-15s %-15s %-22s %s v%d\n",
			e.Record.Decision, reason, e.Record.Persona, e.Record.Phase, e.Record.Timestamp, e.NoteKey, e.NoteVersion)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var sdbEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit one decision record in place",
	Long: `Edit targets the record matching --persona and --phase and rewrites the
given fields. The default is a dry run showing the would-be changes; pass
--execute to write.`,
	RunE: runSDBEdit,
}

func runSDBEdit(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	key, _ := cmd.Flags().GetString("key")
	persona, _ := cmd.Flags().GetString("persona")
	phase, _ := cmd.Flags().GetString("phase")
	execute, _ := cmd.Flags().GetBool("execute")

	updates := map[string]any{}
	for flag, field := range map[string]string{
		"decision": "decision",
		"reason":   "reason_text",
		"evidence": "evidence",
	} {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			updates[field] = v
		}
	}
	if cmd.Flags().Changed("code") {
		v, _ := cmd.Flags().GetString("code")
		var codes []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
		updates["reason_code"] = codes
	}
	if len(updates) == 0 {
		return fmt.Errorf("nothing to change: pass --decision, --code, --reason or --evidence")
	}

	res, err := eng.sdb.Edit(context.Background(), key, persona, phase, updates, !execute)
	if err != nil {
		return err
	}

	for _, change := range res.Changes {
		fmt.Println(" ", change)
	}
	if res.Applied {
		fmt.Printf("Updated note %s.\n", res.NoteKey)
	} else {
		fmt.Printf("Dry run: note %s unchanged (pass --execute to apply).\n", res.NoteKey)
	}
	return nil
}

var sdbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade legacy decision records to the current schema",
	RunE:  runSDBUpgrade,
}

func runSDBUpgrade(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("collection")
	execute, _ := cmd.Flags().GetBool("execute")

	stats, err := eng.sdb.Upgrade(context.Background(), name, !execute)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned: %d  upgraded: %d  skipped: %d  errors: %d\n",
		stats.Scanned, stats.Upgraded, stats.Skipped, stats.Errors)
	if !execute {
		fmt.Println("Dry run: no notes were written (pass --execute to apply).")
	}
	return nil
}

func init() {
	sdbInspectCmd.Flags().String("key", "", "item key (required)")
	sdbInspectCmd.MarkFlagRequired("key")
	sdbCmd.AddCommand(sdbInspectCmd)

	sdbEditCmd.Flags().String("key", "", "item key (required)")
	sdbEditCmd.Flags().String("persona", "", "reviewer identity of the target record (required)")
	sdbEditCmd.Flags().String("phase", "", "screening phase of the target record (required)")
	sdbEditCmd.Flags().String("decision", "", "new decision value (accepted or rejected)")
	sdbEditCmd.Flags().String("code", "", "new criteria codes (comma-separated)")
	sdbEditCmd.Flags().String("reason", "", "new justification text")
	sdbEditCmd.Flags().String("evidence", "", "new evidence text")
	sdbEditCmd.Flags().Bool("execute", false, "write the change instead of dry-running")
	sdbEditCmd.MarkFlagRequired("key")
	sdbEditCmd.MarkFlagRequired("persona")
	sdbEditCmd.MarkFlagRequired("phase")
	sdbCmd.AddCommand(sdbEditCmd)

	sdbUpgradeCmd.Flags().String("collection", "", "collection to scan (required)")
	sdbUpgradeCmd.Flags().Bool("execute", false, "write upgrades instead of dry-running")
	sdbUpgradeCmd.MarkFlagRequired("collection")
	sdbCmd.AddCommand(sdbUpgradeCmd)

	rootCmd.AddCommand(sdbCmd)
}
