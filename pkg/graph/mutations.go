package graph

import (
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/formgraph/formgraph/pkg/model"
)

// AddNode inserts a node under parentID with an edge of the given type and
// returns the new graph value plus the allocated node id. An empty parentID
// defaults to the root, an empty edge type to child. Blank or colliding keys
// are derived from the slugified title with numeric-suffix disambiguation
// among same-bucket siblings.
func (g *SchemaGraph) AddNode(data *model.SchemaNode, parentID string, edgeType model.EdgeType) (*SchemaGraph, string, error) {
	if parentID == "" {
		parentID = model.RootID
	}
	if edgeType == "" {
		edgeType = model.EdgeChild
	}
	parent := g.nodes[parentID]
	if parent == nil {
		return nil, "", &model.NodeNotFoundError{NodeID: parentID}
	}
	if (edgeType == model.EdgeThen || edgeType == model.EdgeElse) && !parent.IsConditional() {
		return nil, "", &model.BranchEdgeError{NodeID: parentID, EdgeType: edgeType}
	}

	node := data.Clone()
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if _, exists := g.nodes[node.ID]; exists {
		node.ID = uuid.NewString()
	}
	node.Key = g.uniqueKey(node.Key, node.Title, parentID, edgeType, "")

	next := g.clone()
	next.nodes[node.ID] = node
	edge := &model.Edge{
		ID:       uuid.NewString(),
		SourceID: parentID,
		TargetID: node.ID,
		Type:     edgeType,
		Order:    g.nextOrder(parentID, edgeType),
	}
	next.edges[edge.ID] = edge
	next.reindex()
	return next, node.ID, nil
}

// RemoveNode removes a node, every node reachable from it via any outgoing
// edge type, every edge touching a removed id, and every definitions entry
// pointing at a removed id.
func (g *SchemaGraph) RemoveNode(id string) (*SchemaGraph, error) {
	if id == model.RootID {
		return nil, &model.RootRemovalError{}
	}
	if g.nodes[id] == nil {
		return nil, &model.NodeNotFoundError{NodeID: id}
	}

	doomed := g.descendants(id)

	next := g.clone()
	for nid := range doomed {
		delete(next.nodes, nid)
	}
	for eid, e := range g.edges {
		if doomed[e.SourceID] || doomed[e.TargetID] {
			delete(next.edges, eid)
		}
	}
	for name, nid := range g.definitions {
		if doomed[nid] {
			delete(next.definitions, name)
		}
	}
	next.reindex()
	return next, nil
}

// UpdateNode shallow-merges a patch into the node's fields. Edges are never
// touched and the node id cannot be changed.
func (g *SchemaGraph) UpdateNode(id string, patch map[string]any) (*SchemaGraph, error) {
	node := g.nodes[id]
	if node == nil {
		return nil, &model.NodeNotFoundError{NodeID: id}
	}

	merged, err := mergeNode(node, patch)
	if err != nil {
		return nil, err
	}
	merged.ID = id

	next := g.clone()
	next.nodes[id] = merged
	next.reindex()
	return next, nil
}

// MoveNode detaches a node from its current same-type attachment and
// re-attaches it under newParentID at the end of the sibling order. Moving a
// node under itself or under one of its descendants is a cycle error, and
// the root can never be re-parented.
func (g *SchemaGraph) MoveNode(id, newParentID string, edgeType model.EdgeType) (*SchemaGraph, error) {
	if edgeType == "" {
		edgeType = model.EdgeChild
	}
	if id == model.RootID {
		return nil, &model.RootRemovalError{}
	}
	if g.nodes[id] == nil {
		return nil, &model.NodeNotFoundError{NodeID: id}
	}
	newParent := g.nodes[newParentID]
	if newParent == nil {
		return nil, &model.NodeNotFoundError{NodeID: newParentID}
	}
	if (edgeType == model.EdgeThen || edgeType == model.EdgeElse) && !newParent.IsConditional() {
		return nil, &model.BranchEdgeError{NodeID: newParentID, EdgeType: edgeType}
	}
	if g.descendants(id)[newParentID] {
		return nil, &model.CycleError{NodeID: id, NewParentID: newParentID}
	}

	next := g.clone()
	for eid, e := range g.edges {
		if e.TargetID == id && e.Type == edgeType {
			delete(next.edges, eid)
		}
	}
	edge := &model.Edge{
		ID:       uuid.NewString(),
		SourceID: newParentID,
		TargetID: id,
		Type:     edgeType,
		Order:    g.nextOrder(newParentID, edgeType),
	}
	next.edges[edge.ID] = edge
	next.reindex()
	return next, nil
}

// ReorderNode re-splices a node within its current same-type sibling list and
// renumbers the bucket's orders. newIndex is clamped to the list bounds.
func (g *SchemaGraph) ReorderNode(id string, newIndex int) (*SchemaGraph, error) {
	if g.nodes[id] == nil {
		return nil, &model.NodeNotFoundError{NodeID: id}
	}
	// A node can carry more than one incoming edge (a child attachment plus
	// a branch attachment). Reorder acts on the child bucket when one exists,
	// falling back to then and else, with the lowest edge ID breaking ties.
	var attach *model.Edge
	for _, edgeType := range []model.EdgeType{model.EdgeChild, model.EdgeThen, model.EdgeElse} {
		for _, e := range g.edges {
			if e.TargetID != id || e.Type != edgeType {
				continue
			}
			if attach == nil || e.ID < attach.ID {
				attach = e
			}
		}
		if attach != nil {
			break
		}
	}
	if attach == nil {
		return nil, &model.NodeNotFoundError{NodeID: id}
	}

	siblings := g.Edges(attach.SourceID, attach.Type)
	ordered := make([]*model.Edge, 0, len(siblings))
	for _, e := range siblings {
		if e.TargetID != id {
			ordered = append(ordered, e)
		}
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(ordered) {
		newIndex = len(ordered)
	}
	ordered = append(ordered[:newIndex], append([]*model.Edge{attach}, ordered[newIndex:]...)...)

	next := g.clone()
	for i, e := range ordered {
		renumbered := *e
		renumbered.Order = i
		next.edges[e.ID] = &renumbered
	}
	next.reindex()
	return next, nil
}

// SaveAsDefinition registers the node under the given name. With disconnect
// set, the child edge attaching the node to its current parent is removed so
// the definition lives detached from the root-reachable tree.
func (g *SchemaGraph) SaveAsDefinition(name, nodeID string, disconnect bool) (*SchemaGraph, error) {
	if g.nodes[nodeID] == nil {
		return nil, &model.NodeNotFoundError{NodeID: nodeID}
	}
	if _, exists := g.definitions[name]; exists {
		return nil, &model.DuplicateDefinitionError{Name: name}
	}

	next := g.clone()
	next.definitions[name] = nodeID
	if disconnect {
		for eid, e := range g.edges {
			if e.TargetID == nodeID && e.Type == model.EdgeChild {
				delete(next.edges, eid)
			}
		}
	}
	next.reindex()
	return next, nil
}

// CreateRefToDefinition creates a ref node pointing at a registered
// definition and attaches it under parentID with a child edge. An empty key
// defaults to the definition name.
func (g *SchemaGraph) CreateRefToDefinition(name, parentID, key string) (*SchemaGraph, string, error) {
	targetID, ok := g.definitions[name]
	if !ok {
		return nil, "", &model.DefinitionNotFoundError{Name: name}
	}
	if key == "" {
		key = name
	}
	ref := &model.SchemaNode{
		Type:           model.NodeRef,
		Key:            key,
		Title:          name,
		RefTarget:      name,
		ResolvedNodeID: targetID,
	}
	return g.AddNode(ref, parentID, model.EdgeChild)
}

// nextOrder returns max(sibling orders)+1 for the bucket, or 0 when empty.
func (g *SchemaGraph) nextOrder(sourceID string, t model.EdgeType) int {
	edges := g.Edges(sourceID, t)
	if len(edges) == 0 {
		return 0
	}
	return edges[len(edges)-1].Order + 1
}

// uniqueKey keeps key if it is set and free within the (parent, edge type)
// bucket; otherwise it derives one from the slugified title and appends a
// numeric suffix until it no longer collides. selfID exempts the node's own
// current key when re-keying.
func (g *SchemaGraph) uniqueKey(key, title, parentID string, t model.EdgeType, selfID string) string {
	taken := make(map[string]bool)
	for _, sib := range g.Children(parentID, t) {
		if sib.ID != selfID {
			taken[sib.Key] = true
		}
	}
	if key != "" && !taken[key] {
		return key
	}
	base := key
	if base == "" {
		base = slugify(title)
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// mergeNode applies a shallow JSON merge of patch over the node's fields.
func mergeNode(node *model.SchemaNode, patch map[string]any) (*model.SchemaNode, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	merged := &model.SchemaNode{}
	if err := json.Unmarshal(raw, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
