package graph

import (
	"fmt"

	"github.com/formgraph/formgraph/pkg/model"
)

// IssueSeverity grades validation findings
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Issue codes reported by Validate
const (
	IssueOrphanNode        = "orphan_node"
	IssueDuplicateKey      = "duplicate_key"
	IssueMultipleParents   = "multiple_parents"
	IssueInvalidBranchEdge = "invalid_branch_edge"
	IssueDanglingEdge      = "dangling_edge"
	IssueUnresolvedRef     = "unresolved_ref"
	IssueEnumNamesLength   = "enum_names_length"
)

// Issue is one advisory validation finding
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Code     string        `json:"code"`
	NodeID   string        `json:"nodeId,omitempty"`
	Message  string        `json:"message"`
}

// Validate inspects the graph for structural problems and returns advisory
// findings. It never fails a graph: callers own the decision of what to do
// with errors versus warnings. Cycle detection lives in pkg/cycles and is
// merged into the report by the boundary layer.
func (g *SchemaGraph) Validate() []Issue {
	var issues []Issue

	// edges must connect existing nodes, branch edges must source a
	// conditional node, and a node may have at most one incoming child edge
	incomingChild := make(map[string]int)
	for _, e := range g.edges {
		src := g.nodes[e.SourceID]
		dst := g.nodes[e.TargetID]
		if src == nil || dst == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     IssueDanglingEdge,
				Message:  fmt.Sprintf("edge %s references a missing node (%s -> %s)", e.ID, e.SourceID, e.TargetID),
			})
			continue
		}
		if e.Type == model.EdgeChild {
			incomingChild[e.TargetID]++
		}
		if (e.Type == model.EdgeThen || e.Type == model.EdgeElse) && !src.IsConditional() {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     IssueInvalidBranchEdge,
				NodeID:   e.SourceID,
				Message:  fmt.Sprintf("%s edge sourced at non-conditional node %s", e.Type, e.SourceID),
			})
		}
	}
	for id, count := range incomingChild {
		if count > 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     IssueMultipleParents,
				NodeID:   id,
				Message:  fmt.Sprintf("node %s has %d incoming child edges", id, count),
			})
		}
	}

	// sibling keys must be unique within each (parent, edge type) bucket
	for sourceID, byType := range g.children {
		for t, edges := range byType {
			seen := make(map[string]string, len(edges))
			for _, e := range edges {
				n := g.nodes[e.TargetID]
				if n == nil {
					continue
				}
				if prev, dup := seen[n.Key]; dup {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Code:     IssueDuplicateKey,
						NodeID:   n.ID,
						Message:  fmt.Sprintf("key %q used by nodes %s and %s under %s (%s)", n.Key, prev, n.ID, sourceID, t),
					})
				}
				seen[n.Key] = n.ID
			}
		}
	}

	// orphans: not reachable from the root or from any definition target
	reachable := g.descendants(model.RootID)
	for _, defID := range g.definitions {
		for id := range g.descendants(defID) {
			reachable[id] = true
		}
	}
	for id := range g.nodes {
		if !reachable[id] {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     IssueOrphanNode,
				NodeID:   id,
				Message:  fmt.Sprintf("node %s is not reachable from the root or any definition", id),
			})
		}
	}

	// per-node checks
	for _, n := range g.nodes {
		if n.Type == model.NodeRef {
			if _, ok := g.definitions[n.RefTarget]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     IssueUnresolvedRef,
					NodeID:   n.ID,
					Message:  fmt.Sprintf("ref %s targets unknown definition %q", n.ID, n.RefTarget),
				})
			}
		}
		// enumNames length is advisory only; the length mismatch is
		// deliberately not an error (permissive, pending a product decision)
		if n.Type == model.NodeEnum && len(n.EnumNames) > 0 && len(n.EnumNames) != len(n.Enum) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     IssueEnumNamesLength,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("enum %s has %d values but %d enumNames", n.ID, len(n.Enum), len(n.EnumNames)),
			})
		}
	}

	return issues
}
