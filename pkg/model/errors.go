package model

import "fmt"

// CycleError reports a mutation that would make a node its own ancestor
// in the child-edge subgraph.
type CycleError struct {
	NodeID      string
	NewParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("moving node %s under %s would create a cycle", e.NodeID, e.NewParentID)
}

// NodeNotFoundError reports an operation addressing an id absent from the graph.
type NodeNotFoundError struct {
	NodeID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node not found: %s", e.NodeID)
}

// RootRemovalError reports an attempt to remove or re-parent the root node.
type RootRemovalError struct{}

func (e *RootRemovalError) Error() string {
	return "the root node cannot be removed or re-parented"
}

// BranchEdgeError reports a then/else edge whose source is not a conditional
// node.
type BranchEdgeError struct {
	NodeID   string
	EdgeType EdgeType
}

func (e *BranchEdgeError) Error() string {
	return fmt.Sprintf("node %s cannot source a %s edge: not a conditional group", e.NodeID, e.EdgeType)
}

// DuplicateDefinitionError reports a definition name that is already registered.
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("definition already exists: %s", e.Name)
}

// DefinitionNotFoundError reports a reference to an unregistered definition name.
type DefinitionNotFoundError struct {
	Name string
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("definition not found: %s", e.Name)
}

// CompileError is terminal: emitting a schema with the problem in place would
// silently corrupt downstream consumers.
type CompileError struct {
	NodeID string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed at node %s: %s", e.NodeID, e.Reason)
}

// ImportError reports a schema fragment the importer could not recover.
// Unsupported keywords are skipped instead; only terminal problems (such as
// a dangling $ref after a full pass) surface as errors.
type ImportError struct {
	Path   string // schema path of the offending fragment, e.g. "/properties/person"
	Reason string
}

func (e *ImportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("import failed: %s", e.Reason)
	}
	return fmt.Sprintf("import failed at %s: %s", e.Path, e.Reason)
}
