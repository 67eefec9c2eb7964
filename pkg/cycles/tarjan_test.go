package cycles

import (
	"testing"

	"gonum.org/v1/gonum/graph/simple"
)

func digraph(edges [][2]int64) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for _, e := range edges {
		for _, id := range e {
			if dg.Node(id) == nil {
				dg.AddNode(simple.Node(id))
			}
		}
		dg.SetEdge(dg.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
	}
	return dg
}

func TestCyclicSCCs_AcyclicChain(t *testing.T) {
	dg := digraph([][2]int64{{1, 2}, {2, 3}, {1, 3}})

	sccs := CyclicSCCs(dg)
	if len(sccs) != 0 {
		t.Errorf("Expected no cycles in an acyclic chain, got %v", sccs)
	}
}

func TestCyclicSCCs_SimpleCycle(t *testing.T) {
	dg := digraph([][2]int64{{1, 2}, {2, 1}})

	sccs := CyclicSCCs(dg)
	if len(sccs) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(sccs))
	}
	if len(sccs[0]) != 2 {
		t.Errorf("Expected cycle of length 2, got %v", sccs[0])
	}
}

func TestCyclicSCCs_MultipleCycles(t *testing.T) {
	dg := digraph([][2]int64{
		{1, 2}, {2, 3}, {3, 1}, // first cycle
		{4, 5}, {5, 4}, // second cycle
		{3, 4}, // bridge between them
	})

	sccs := CyclicSCCs(dg)
	if len(sccs) != 2 {
		t.Fatalf("Expected 2 cycles, got %d: %v", len(sccs), sccs)
	}

	sizes := map[int]bool{}
	for _, scc := range sccs {
		sizes[len(scc)] = true
	}
	if !sizes[3] || !sizes[2] {
		t.Errorf("Expected cycles of sizes 3 and 2, got %v", sccs)
	}
}
