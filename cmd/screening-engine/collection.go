// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Move, prune, empty and deduplicate collections",
}

var collectionMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move an item between collections",
	Long: `Move relocates one item into --dest. The item is found by key first,
then by DOI or arXiv ID inside --source. When --source is omitted it is
inferred from the item's current collections; the inference fails rather
than guess if more than one candidate remains.`,
	RunE: runCollectionMove,
}

func runCollectionMove(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	source, _ := cmd.Flags().GetString("source")
	dest, _ := cmd.Flags().GetString("dest")
	id, _ := cmd.Flags().GetString("id")

	if err := eng.cols.MoveItem(context.Background(), source, dest, id); err != nil {
		return err
	}
	fmt.Printf("Moved %s into %q.\n", id, dest)
	return nil
}

var collectionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Enforce mutual exclusivity between two collections",
	Long: `Prune removes from --excluded every item whose identity also appears in
--included: shared objects lose the membership, separately imported
duplicates are deleted.`,
	RunE: runCollectionPrune,
}

func runCollectionPrune(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	included, _ := cmd.Flags().GetString("included")
	excluded, _ := cmd.Flags().GetString("excluded")

	stats, err := eng.cols.PruneIntersection(context.Background(), included, excluded)
	if err != nil {
		return err
	}
	if stats.Unlinked+stats.Deleted == 0 {
		fmt.Println("No intersection found. Sets are disjoint.")
		return nil
	}
	fmt.Printf("Unlinked: %d  deleted: %d  errors: %d\n", stats.Unlinked, stats.Deleted, stats.Errors)
	return nil
}

var collectionEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Delete every item in a collection",
	RunE:  runCollectionEmpty,
}

func runCollectionEmpty(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("name")
	parent, _ := cmd.Flags().GetString("parent")

	n, err := eng.cols.EmptyCollection(context.Background(), name, parent)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d item(s) from %q.\n", n, name)
	return nil
}

var collectionDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find duplicate items across collections",
	RunE:  runCollectionDuplicates,
}

func runCollectionDuplicates(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	raw, _ := cmd.Flags().GetString("collections")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	groups, err := eng.cols.FindDuplicates(context.Background(), names)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}
	for _, g := range groups {
		fmt.Printf("%s  %s\n  keys: %s\n", g.Identifier, g.Title, strings.Join(g.Keys, ", "))
	}
	fmt.Printf("%d duplicate group(s).\n", len(groups))
	return nil
}

func init() {
	collectionMoveCmd.Flags().String("source", "", "source collection (inferred when omitted)")
	collectionMoveCmd.Flags().String("dest", "", "destination collection (required)")
	collectionMoveCmd.Flags().String("id", "", "item key, DOI or arXiv ID (required)")
	collectionMoveCmd.MarkFlagRequired("dest")
	collectionMoveCmd.MarkFlagRequired("id")
	collectionCmd.AddCommand(collectionMoveCmd)

	collectionPruneCmd.Flags().String("included", "", "primary collection whose items win (required)")
	collectionPruneCmd.Flags().String("excluded", "", "secondary collection to prune (required)")
	collectionPruneCmd.MarkFlagRequired("included")
	collectionPruneCmd.MarkFlagRequired("excluded")
	collectionCmd.AddCommand(collectionPruneCmd)

	collectionEmptyCmd.Flags().String("name", "", "collection to empty (required)")
	collectionEmptyCmd.Flags().String("parent", "", "parent collection, for scoping same-named siblings")
	collectionEmptyCmd.MarkFlagRequired("name")
	collectionCmd.AddCommand(collectionEmptyCmd)

	collectionDuplicatesCmd.Flags().String("collections", "", "collections to scan (comma-separated, required)")
	collectionDuplicatesCmd.MarkFlagRequired("collections")
	collectionCmd.AddCommand(collectionDuplicatesCmd)

	rootCmd.AddCommand(collectionCmd)
}
