package cycles

import (
	"github.com/formgraph/formgraph/pkg/graph"
)

// Cycle is a set of nodes forming a circular containment in the child-edge
// subgraph. A well-formed graph has none; the mutation API refuses to create
// them, so a reported cycle means the graph was built outside the API.
type Cycle struct {
	NodeIDs []string `json:"nodeIds"`
}

// FindGraphCycles reports all containment cycles in the child-edge subgraph.
func FindGraphCycles(g *graph.SchemaGraph) []Cycle {
	dg, back := g.ChildDigraph()
	sccs := CyclicSCCs(dg)

	cycles := make([]Cycle, 0, len(sccs))
	for _, scc := range sccs {
		ids := make([]string, 0, len(scc))
		for _, gid := range scc {
			if nodeID, ok := back[gid]; ok {
				ids = append(ids, nodeID)
			}
		}
		if len(ids) > 1 {
			cycles = append(cycles, Cycle{NodeIDs: ids})
		}
	}
	return cycles
}
