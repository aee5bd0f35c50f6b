package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/snapstore"
	"github.com/agentic-research/tessera/internal/workspace"
)

var (
	logger *zap.Logger

	workspacePath string
	storePath     string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "tessera",
	Short:         "Tessera: an embeddable typed graph engine",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		viper.SetEnvPrefix("TESSERA")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if workspacePath == "" {
			workspacePath = viper.GetString("workspace")
		}
		if storePath == "" {
			storePath = viper.GetString("store")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", "", "path to a workspace manifest (HCL)")
	rootCmd.PersistentFlags().StringVarP(&storePath, "store", "s", "", "path to the snapshot store database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// newEngine builds an engine seeded from the workspace manifest, when
// one is configured.
func newEngine() (*graph.Engine, *workspace.Workspace, error) {
	eng := graph.New()
	if workspacePath == "" {
		return eng, nil, nil
	}
	ws, err := workspace.Load(workspacePath)
	if err != nil {
		return nil, nil, err
	}
	if err := ws.Apply(eng); err != nil {
		return nil, nil, err
	}
	return eng, ws, nil
}

// openStore resolves the snapshot store from the --store flag or the
// workspace manifest.
func openStore(ws *workspace.Workspace) (*snapstore.Store, error) {
	path := storePath
	if path == "" && ws != nil {
		path = ws.SnapshotPath()
	}
	if path == "" {
		return nil, fmt.Errorf("no snapshot store configured: pass --store or set snapshots in the workspace manifest")
	}
	return snapstore.Open(path, logger)
}
