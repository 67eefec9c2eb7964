package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/formgraph/formgraph/pkg/model"
)

// SchemaGraph is the persistent value holding all nodes and typed edges of a
// form definition. Mutations return a new value; an existing reference is
// never changed by a later call, successful or not.
type SchemaGraph struct {
	nodes       map[string]*model.SchemaNode
	edges       map[string]*model.Edge
	definitions map[string]string // name -> node id, target may be detached

	// derived indices, rebuilt whenever a mutation produces a new value
	parents  map[string]string                          // child id -> parent id, child edges only
	children map[string]map[model.EdgeType][]*model.Edge // source id -> ordered edges per type

	revision uint64
}

// New creates a graph holding only the fixed root object node.
func New() *SchemaGraph {
	g := &SchemaGraph{
		nodes: map[string]*model.SchemaNode{
			model.RootID: {ID: model.RootID, Type: model.NodeObject, Key: "root", Title: "Root"},
		},
		edges:       map[string]*model.Edge{},
		definitions: map[string]string{},
		revision:    1,
	}
	g.reindex()
	return g
}

// Revision counts mutations along this value's lineage, sequencing the
// regenerated documents derived from it. It does not identify a value: two
// successors of the same graph share a revision, and a freshly imported
// graph restarts at 1.
func (g *SchemaGraph) Revision() uint64 { return g.revision }

// Node returns the node with the given id, or nil.
func (g *SchemaGraph) Node(id string) *model.SchemaNode { return g.nodes[id] }

// Root returns the root object node.
func (g *SchemaGraph) Root() *model.SchemaNode { return g.nodes[model.RootID] }

// Parent returns the structural parent of a node, derived from child edges
// only. ok is false for the root, detached nodes, and branch-only nodes.
func (g *SchemaGraph) Parent(id string) (string, bool) {
	p, ok := g.parents[id]
	return p, ok
}

// Edges returns the outgoing edges of the given type, in sibling order.
func (g *SchemaGraph) Edges(sourceID string, t model.EdgeType) []*model.Edge {
	return g.children[sourceID][t]
}

// Children returns the target nodes of the outgoing edges of the given type,
// in sibling order.
func (g *SchemaGraph) Children(sourceID string, t model.EdgeType) []*model.SchemaNode {
	edges := g.Edges(sourceID, t)
	nodes := make([]*model.SchemaNode, 0, len(edges))
	for _, e := range edges {
		if n := g.nodes[e.TargetID]; n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Definition resolves a definition name to its node id.
func (g *SchemaGraph) Definition(name string) (string, bool) {
	id, ok := g.definitions[name]
	return id, ok
}

// Definitions returns a copy of the name -> node id registry.
func (g *SchemaGraph) Definitions() map[string]string {
	out := make(map[string]string, len(g.definitions))
	for k, v := range g.definitions {
		out[k] = v
	}
	return out
}

// Nodes returns all nodes in unspecified order.
func (g *SchemaGraph) Nodes() []*model.SchemaNode {
	out := make([]*model.SchemaNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// AllEdges returns all edges in unspecified order.
func (g *SchemaGraph) AllEdges() []*model.Edge {
	out := make([]*model.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// ChildDigraph projects the child-edge subgraph onto a gonum directed graph
// for cycle analysis. The returned map translates gonum ids back to node ids.
func (g *SchemaGraph) ChildDigraph() (*simple.DirectedGraph, map[int64]string) {
	dg := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(g.nodes))
	back := make(map[int64]string, len(g.nodes))

	var next int64
	for id := range g.nodes {
		ids[id] = next
		back[next] = id
		dg.AddNode(simple.Node(next))
		next++
	}
	for _, e := range g.edges {
		if e.Type != model.EdgeChild {
			continue
		}
		from, okF := ids[e.SourceID]
		to, okT := ids[e.TargetID]
		if okF && okT && from != to {
			dg.SetEdge(dg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}
	return dg, back
}

// clone makes the next graph value: maps are copied so the new value can be
// edited freely, node and edge pointers are shared until replaced.
func (g *SchemaGraph) clone() *SchemaGraph {
	c := &SchemaGraph{
		nodes:       make(map[string]*model.SchemaNode, len(g.nodes)),
		edges:       make(map[string]*model.Edge, len(g.edges)),
		definitions: make(map[string]string, len(g.definitions)),
		revision:    g.revision + 1,
	}
	for k, v := range g.nodes {
		c.nodes[k] = v
	}
	for k, v := range g.edges {
		c.edges[k] = v
	}
	for k, v := range g.definitions {
		c.definitions[k] = v
	}
	return c
}

// reindex rebuilds the parent and children indices from the edge set.
func (g *SchemaGraph) reindex() {
	g.parents = make(map[string]string)
	g.children = make(map[string]map[model.EdgeType][]*model.Edge)

	for _, e := range g.edges {
		byType := g.children[e.SourceID]
		if byType == nil {
			byType = make(map[model.EdgeType][]*model.Edge)
			g.children[e.SourceID] = byType
		}
		byType[e.Type] = append(byType[e.Type], e)

		if e.Type == model.EdgeChild {
			g.parents[e.TargetID] = e.SourceID
		}
	}
	for _, byType := range g.children {
		for _, edges := range byType {
			sort.Slice(edges, func(i, j int) bool { return edges[i].Order < edges[j].Order })
		}
	}
}

// descendants collects every id reachable from start via any outgoing edge
// type, including start itself.
func (g *SchemaGraph) descendants(start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, byType := range g.children[id] {
			for _, e := range byType {
				if !seen[e.TargetID] {
					seen[e.TargetID] = true
					queue = append(queue, e.TargetID)
				}
			}
		}
	}
	return seen
}
