package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/query"
)

// loadNamed builds a workspace-seeded engine and loads the named
// snapshot into it.
func loadNamed(name string) (*graph.Engine, error) {
	eng, ws, err := newEngine()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ws)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.Restore(name, eng); err != nil {
		return nil, err
	}
	return eng, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats [snapshot]",
	Short: "Show tile counts for a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadNamed(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("tiles:       %d\n", eng.Len())
		fmt.Printf("objects:     %d\n", len(eng.Objects()))
		fmt.Printf("arrows:      %d\n", len(eng.Arrows()))
		fmt.Printf("descriptors: %d\n", len(eng.Descriptors()))
		fmt.Printf("extensions:  %d\n", len(eng.Extensions()))
		byComponent := make(map[string]int)
		for _, t := range eng.All() {
			byComponent[t.Component]++
		}
		for _, name := range eng.Types().Names() {
			if n := byComponent[name]; n > 0 {
				fmt.Printf("  %-32s %d\n", name, n)
			}
		}
		return nil
	},
}

var typesCmd = &cobra.Command{
	Use:   "types [snapshot]",
	Short: "List the component types a snapshot carries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var eng *graph.Engine
		var err error
		if len(args) == 1 {
			eng, err = loadNamed(args[0])
		} else {
			eng, _, err = newEngine()
		}
		if err != nil {
			return err
		}
		for _, name := range eng.Types().Names() {
			ct, err := eng.Types().Get(name)
			if err != nil {
				return err
			}
			fmt.Println(ct.Canonical())
		}
		return nil
	},
}

var reachCmd = &cobra.Command{
	Use:   "reach [snapshot] [from] [to]",
	Short: "Check whether one tile reaches another along arrows",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad from id %q: %w", args[1], err)
		}
		to, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad to id %q: %w", args[2], err)
		}

		eng, err := loadNamed(args[0])
		if err != nil {
			return err
		}
		if !eng.IsValid(from) || !eng.IsValid(to) {
			return fmt.Errorf("both ids must name live tiles")
		}

		tr := query.NewTraversal(eng, query.Exclude)
		paths, ok := tr.ForwardPathBetween(from, to)
		if !ok {
			fmt.Printf("%d does not reach %d\n", from, to)
			return nil
		}
		fmt.Printf("%d reaches %d (%d paths)\n", from, to, len(paths))
		for _, p := range paths {
			for i, id := range p {
				if i > 0 {
					fmt.Print(" -> ")
				}
				fmt.Print(id)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, typesCmd, reachCmd)
}
