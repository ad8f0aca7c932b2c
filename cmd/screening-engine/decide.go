// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/screening"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Record a screening decision on an item",
	Long: `Decide records an INCLUDE or EXCLUDE verdict for one item. The decision
is written as a versioned note on the item, semantic tags are applied, and
with --source and --target the item is moved between collections. Repeating
the command for the same persona and phase updates the existing note.`,
	RunE: runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	key, _ := cmd.Flags().GetString("key")
	vote, _ := cmd.Flags().GetString("vote")
	code, _ := cmd.Flags().GetString("code")
	reason, _ := cmd.Flags().GetString("reason")
	evidence, _ := cmd.Flags().GetString("evidence")
	persona, _ := cmd.Flags().GetString("persona")
	phase, _ := cmd.Flags().GetString("phase")
	source, _ := cmd.Flags().GetString("source")
	target, _ := cmd.Flags().GetString("target")

	err = eng.screening.RecordDecision(context.Background(), screening.DecisionRequest{
		ItemKey:          key,
		Decision:         vote,
		Code:             code,
		Reason:           reason,
		Evidence:         evidence,
		Persona:          persona,
		Phase:            phase,
		SourceCollection: source,
		TargetCollection: target,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %s for %s (persona %s, phase %s)\n", vote, key, persona, phase)
	return nil
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List items of a collection without a screening decision",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("collection")
	items, err := eng.screening.PendingItems(context.Background(), name)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Printf("No pending items in %q.\n", name)
		return nil
	}
	for _, it := range items {
		fmt.Printf("%s  %s\n", it.Key, it.Title)
	}
	fmt.Printf("%d pending item(s) in %q.\n", len(items), name)
	return nil
}

func init() {
	decideCmd.Flags().String("key", "", "item key (required)")
	decideCmd.Flags().String("vote", "", "INCLUDE or EXCLUDE (required)")
	decideCmd.Flags().String("code", "", "exclusion criteria codes (comma-separated)")
	decideCmd.Flags().String("reason", "", "free-text justification")
	decideCmd.Flags().String("evidence", "", "quoted passage supporting the decision")
	decideCmd.Flags().String("persona", "unknown", "reviewer identity")
	decideCmd.Flags().String("phase", types.PhaseTitleAbstract, "screening phase (title_abstract or full_text)")
	decideCmd.Flags().String("source", "", "collection to move the item out of")
	decideCmd.Flags().String("target", "", "collection to move the item into")
	decideCmd.MarkFlagRequired("key")
	decideCmd.MarkFlagRequired("vote")
	rootCmd.AddCommand(decideCmd)

	pendingCmd.Flags().String("collection", "", "collection to scan (required)")
	pendingCmd.MarkFlagRequired("collection")
	rootCmd.AddCommand(pendingCmd)
}
