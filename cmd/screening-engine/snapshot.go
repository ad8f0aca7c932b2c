// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture collection state and detect drift",
	Long: `Snapshot records which items live in which collections so that later
runs can detect silent moves made by other library members. Recover-csv
rebuilds a reviewer decision sheet from the notes in the library.`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write a YAML snapshot of a collection",
	RunE:  runSnapshotSave,
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("collection")
	output, _ := cmd.Flags().GetString("output")

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	svc := snapshot.NewService(eng.gw)
	snap, err := svc.Save(context.Background(), name, out)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Printf("Saved %d item(s) from %q to %s.\n", len(snap.Items), name, output)
	}
	return nil
}

var snapshotShiftCmd = &cobra.Command{
	Use:   "shift",
	Short: "Compare two snapshots and report moved items",
	RunE:  runSnapshotShift,
}

func runSnapshotShift(cmd *cobra.Command, args []string) error {
	oldPath, _ := cmd.Flags().GetString("old")
	newPath, _ := cmd.Flags().GetString("new")

	oldSnap, err := loadSnapshotFile(oldPath)
	if err != nil {
		return err
	}
	newSnap, err := loadSnapshotFile(newPath)
	if err != nil {
		return err
	}

	shifts := snapshot.DetectShifts(oldSnap, newSnap)
	if len(shifts) == 0 {
		fmt.Println("No shifts detected.")
		return nil
	}
	for _, sh := range shifts {
		fmt.Printf("%s  %s\n  %s -> %s\n", sh.Key, sh.Title,
			strings.Join(sh.From, ", "), strings.Join(sh.To, ", "))
	}
	fmt.Printf("%d item(s) shifted.\n", len(shifts))
	return nil
}

func loadSnapshotFile(path string) (snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer f.Close()
	return snapshot.Load(f)
}

var snapshotRecoverCmd = &cobra.Command{
	Use:   "recover-csv",
	Short: "Rebuild a reviewer CSV from the library's decision notes",
	RunE:  runSnapshotRecover,
}

func runSnapshotRecover(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	name, _ := cmd.Flags().GetString("collection")
	output, _ := cmd.Flags().GetString("output")

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	svc := snapshot.NewService(eng.gw)
	rows, err := svc.RecoverCSV(context.Background(), name, out)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Printf("Recovered %d decision row(s) from %q to %s.\n", rows, name, output)
	}
	return nil
}

func init() {
	snapshotSaveCmd.Flags().String("collection", "", "collection to snapshot (required)")
	snapshotSaveCmd.Flags().String("output", "", "snapshot file (stdout when omitted)")
	snapshotSaveCmd.MarkFlagRequired("collection")
	snapshotCmd.AddCommand(snapshotSaveCmd)

	snapshotShiftCmd.Flags().String("old", "", "earlier snapshot file (required)")
	snapshotShiftCmd.Flags().String("new", "", "later snapshot file (required)")
	snapshotShiftCmd.MarkFlagRequired("old")
	snapshotShiftCmd.MarkFlagRequired("new")
	snapshotCmd.AddCommand(snapshotShiftCmd)

	snapshotRecoverCmd.Flags().String("collection", "", "collection to recover from (required)")
	snapshotRecoverCmd.Flags().String("output", "", "CSV file (stdout when omitted)")
	snapshotRecoverCmd.MarkFlagRequired("collection")
	snapshotCmd.AddCommand(snapshotRecoverCmd)

	rootCmd.AddCommand(snapshotCmd)
}
