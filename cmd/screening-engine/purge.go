// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/purge"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Bulk-remove attachments, notes and tags",
	Long: `Purge deletes asset classes in bulk from items or whole collections.
Every subcommand dry-runs by default and refuses to run at all against a
read-only (offline) gateway.`,
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func printPurgeStats(stats purge.Stats, execute bool) {
	fmt.Printf("Deleted: %d  skipped: %d  errors: %d\n", stats.Deleted, stats.Skipped, stats.Errors)
	if !execute {
		fmt.Println("Dry run: nothing was deleted (pass --execute to apply).")
	}
}

var purgeNotesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Delete notes under the given items",
	RunE:  runPurgeNotes,
}

func runPurgeNotes(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	keys, _ := cmd.Flags().GetString("keys")
	sdbOnly, _ := cmd.Flags().GetBool("sdb-only")
	phase, _ := cmd.Flags().GetString("phase")
	execute, _ := cmd.Flags().GetBool("execute")

	svc := purge.NewService(eng.gw, cmd.ErrOrStderr())
	stats, err := svc.PurgeNotes(context.Background(), splitList(keys),
		purge.NoteFilter{SDBOnly: sdbOnly, Phase: phase}, !execute)
	if err != nil {
		return err
	}
	printPurgeStats(stats, execute)
	return nil
}

var purgeAttachmentsCmd = &cobra.Command{
	Use:   "attachments",
	Short: "Delete attachments under the given items",
	RunE:  runPurgeAttachments,
}

func runPurgeAttachments(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	keys, _ := cmd.Flags().GetString("keys")
	execute, _ := cmd.Flags().GetBool("execute")

	svc := purge.NewService(eng.gw, cmd.ErrOrStderr())
	stats, err := svc.PurgeAttachments(context.Background(), splitList(keys), !execute)
	if err != nil {
		return err
	}
	printPurgeStats(stats, execute)
	return nil
}

var purgeTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Remove tags from the given items",
	RunE:  runPurgeTags,
}

func runPurgeTags(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	keys, _ := cmd.Flags().GetString("keys")
	tag, _ := cmd.Flags().GetString("tag")
	execute, _ := cmd.Flags().GetBool("execute")

	svc := purge.NewService(eng.gw, cmd.ErrOrStderr())
	stats, err := svc.PurgeTags(context.Background(), splitList(keys), tag, !execute)
	if err != nil {
		return err
	}
	printPurgeStats(stats, execute)
	return nil
}

var purgeCollectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Purge asset classes from every item of a collection",
	RunE:  runPurgeCollection,
}

func runPurgeCollection(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("name")
	rawAssets, _ := cmd.Flags().GetString("assets")
	recursive, _ := cmd.Flags().GetBool("recursive")
	execute, _ := cmd.Flags().GetBool("execute")

	var assets []purge.Asset
	for _, a := range splitList(rawAssets) {
		assets = append(assets, purge.Asset(a))
	}

	svc := purge.NewService(eng.gw, cmd.ErrOrStderr())
	stats, err := svc.PurgeCollectionAssets(context.Background(), name, assets, recursive, !execute)
	if err != nil {
		return err
	}
	printPurgeStats(stats, execute)
	return nil
}

func init() {
	purgeNotesCmd.Flags().String("keys", "", "parent item keys (comma-separated, required)")
	purgeNotesCmd.Flags().Bool("sdb-only", false, "only delete decision notes")
	purgeNotesCmd.Flags().String("phase", "", "only delete decision notes of this phase")
	purgeNotesCmd.Flags().Bool("execute", false, "delete instead of dry-running")
	purgeNotesCmd.MarkFlagRequired("keys")
	purgeCmd.AddCommand(purgeNotesCmd)

	purgeAttachmentsCmd.Flags().String("keys", "", "parent item keys (comma-separated, required)")
	purgeAttachmentsCmd.Flags().Bool("execute", false, "delete instead of dry-running")
	purgeAttachmentsCmd.MarkFlagRequired("keys")
	purgeCmd.AddCommand(purgeAttachmentsCmd)

	purgeTagsCmd.Flags().String("keys", "", "item keys (comma-separated, required)")
	purgeTagsCmd.Flags().String("tag", "", "tag to remove (all tags when omitted)")
	purgeTagsCmd.Flags().Bool("execute", false, "retag instead of dry-running")
	purgeTagsCmd.MarkFlagRequired("keys")
	purgeCmd.AddCommand(purgeTagsCmd)

	purgeCollectionCmd.Flags().String("name", "", "collection to purge (required)")
	purgeCollectionCmd.Flags().String("assets", "files,notes,tags", "asset classes to purge")
	purgeCollectionCmd.Flags().Bool("recursive", false, "include child items")
	purgeCollectionCmd.Flags().Bool("execute", false, "delete instead of dry-running")
	purgeCollectionCmd.MarkFlagRequired("name")
	purgeCmd.AddCommand(purgeCollectionCmd)

	rootCmd.AddCommand(purgeCmd)
}
