package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage engine snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [name] [snapshot.bin]",
	Short: "Store a binary snapshot file under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, file := args[0], args[1]

		eng, ws, err := newEngine()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading snapshot file: %w", err)
		}
		if err := eng.Load(data); err != nil {
			return fmt.Errorf("snapshot file does not load cleanly: %w", err)
		}

		store, err := openStore(ws)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Put(name, eng)
		if err != nil {
			return err
		}
		fmt.Printf("saved %q (%s), %d tiles\n", name, id, eng.Len())
		return nil
	},
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export [name] [snapshot.bin]",
	Short: "Write a stored snapshot back out as a binary file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, file := args[0], args[1]

		_, ws, err := newEngine()
		if err != nil {
			return err
		}
		store, err := openStore(ws)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := store.Get(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return fmt.Errorf("writing snapshot file: %w", err)
		}
		fmt.Printf("exported %q: %d bytes\n", name, len(data))
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ws, err := newEngine()
		if err != nil {
			return err
		}
		store, err := openStore(ws)
		if err != nil {
			return err
		}
		defer store.Close()

		snaps, err := store.List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("no snapshots")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%-24s %8d bytes  %s  %s\n",
				s.Name, s.Size, s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID)
		}
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ws, err := newEngine()
		if err != nil {
			return err
		}
		store, err := openStore(ws)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotExportCmd, snapshotListCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}
