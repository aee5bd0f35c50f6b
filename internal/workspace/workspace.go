// Package workspace loads a project manifest: an HCL file naming the
// snapshot store and the component type declarations an engine should
// start with.
package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/tessera/internal/graph"
)

// TypeBlock is one named group of component declarations.
type TypeBlock struct {
	Name    string `hcl:"name,label"`
	Declare string `hcl:"declare"`
}

// Workspace is the decoded manifest.
//
//	snapshots = "snaps.db"
//
//	types "core" {
//	  declare = "Position: { x: f32, y: f32 };"
//	}
type Workspace struct {
	Snapshots string      `hcl:"snapshots,optional"`
	Types     []TypeBlock `hcl:"types,block"`

	dir string
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Workspace, error) {
	var ws Workspace
	if err := hclsimple.DecodeFile(path, nil, &ws); err != nil {
		return nil, fmt.Errorf("loading workspace %s: %w", path, err)
	}
	ws.dir = filepath.Dir(path)
	return &ws, nil
}

// SnapshotPath resolves the snapshot store location relative to the
// manifest's directory. Empty when the manifest names no store.
func (ws *Workspace) SnapshotPath() string {
	if ws.Snapshots == "" {
		return ""
	}
	if filepath.IsAbs(ws.Snapshots) {
		return ws.Snapshots
	}
	return filepath.Join(ws.dir, ws.Snapshots)
}

// Apply registers every type block on the engine, in manifest order.
func (ws *Workspace) Apply(eng *graph.Engine) error {
	for _, tb := range ws.Types {
		if err := eng.RegisterTypes(tb.Declare); err != nil {
			return fmt.Errorf("registering types %q: %w", tb.Name, err)
		}
	}
	return nil
}
