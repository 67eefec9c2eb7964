// Package editor is the boundary between the pure core and its consumers: it
// holds the current graph value, dispatches mutations, and owns the
// regeneration policy. Mutation bursts are debounced into one regeneration;
// a wholesale replace regenerates synchronously because the entire document
// changed at once.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/formgraph/formgraph/pkg/compiler"
	"github.com/formgraph/formgraph/pkg/cycles"
	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/importer"
	"github.com/formgraph/formgraph/pkg/logging"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/schema"
	"github.com/formgraph/formgraph/pkg/uischema"
)

// Documents is one regenerated (JSON Schema, UI Schema) pair. The two are
// derived from the same graph value, so their property sets always agree.
type Documents struct {
	Revision uint64            `json:"revision"`
	Schema   *schema.Schema    `json:"schema"`
	UISchema uischema.UISchema `json:"uiSchema"`
}

// ValidationReport merges the graph's advisory findings with the cycle scan.
type ValidationReport struct {
	Issues []graph.Issue  `json:"issues"`
	Cycles []cycles.Cycle `json:"cycles"`
}

// Session serializes access to the current graph value. The core stays pure;
// the session is the single writer that swaps one immutable value for the
// next.
type Session struct {
	mu       sync.Mutex
	g        *graph.SchemaGraph
	compiler *compiler.Compiler

	opts     Options
	changes  chan uint64
	onUpdate func(Documents)
}

// Options tunes the regeneration policy.
type Options struct {
	QuietPeriod time.Duration // debounce quiet period for mutation bursts
	MaxWait     time.Duration // upper bound before a busy burst regenerates anyway
	OnUpdate    func(Documents)
}

// NewSession creates a session over a fresh root-only graph.
func NewSession(opts Options) *Session {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = 150 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = time.Second
	}
	s := &Session{
		g:        graph.New(),
		compiler: compiler.New(),
		changes:  make(chan uint64, 100),
		onUpdate: opts.OnUpdate,
	}
	s.opts = opts
	return s
}

// Start runs the debounced regeneration loop until the context is cancelled.
func (s *Session) Start(ctx context.Context) {
	deb := NewDebouncer(s.changes, s.opts.QuietPeriod, s.opts.MaxWait)
	deb.Start(ctx)
	go func() {
		for range deb.Output() {
			s.regenerate()
		}
	}()
}

// Graph returns the current graph value. Safe to hand out: graph values are
// never mutated in place.
func (s *Session) Graph() *graph.SchemaGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g
}

// AddNode inserts a node and schedules a regeneration.
func (s *Session) AddNode(data *model.SchemaNode, parentID string, edgeType model.EdgeType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, id, err := s.g.AddNode(data, parentID, edgeType)
	if err != nil {
		return "", err
	}
	s.swap(next)
	return id, nil
}

// RemoveNode removes a node and its structural descendants.
func (s *Session) RemoveNode(id string) error {
	return s.apply(func(g *graph.SchemaGraph) (*graph.SchemaGraph, error) {
		return g.RemoveNode(id)
	})
}

// UpdateNode shallow-merges a patch into a node.
func (s *Session) UpdateNode(id string, patch map[string]any) error {
	return s.apply(func(g *graph.SchemaGraph) (*graph.SchemaGraph, error) {
		return g.UpdateNode(id, patch)
	})
}

// MoveNode re-parents a node.
func (s *Session) MoveNode(id, newParentID string, edgeType model.EdgeType) error {
	return s.apply(func(g *graph.SchemaGraph) (*graph.SchemaGraph, error) {
		return g.MoveNode(id, newParentID, edgeType)
	})
}

// ReorderNode re-splices a node within its sibling list.
func (s *Session) ReorderNode(id string, newIndex int) error {
	return s.apply(func(g *graph.SchemaGraph) (*graph.SchemaGraph, error) {
		return g.ReorderNode(id, newIndex)
	})
}

// SaveAsDefinition registers a node under a definition name.
func (s *Session) SaveAsDefinition(name, nodeID string, disconnect bool) error {
	return s.apply(func(g *graph.SchemaGraph) (*graph.SchemaGraph, error) {
		return g.SaveAsDefinition(name, nodeID, disconnect)
	})
}

// CreateRefToDefinition adds a ref node pointing at a definition.
func (s *Session) CreateRefToDefinition(name, parentID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, id, err := s.g.CreateRefToDefinition(name, parentID, key)
	if err != nil {
		return "", err
	}
	s.swap(next)
	return id, nil
}

// Import parses and imports a JSON Schema document, replacing the current
// graph. Unlike mutations this regenerates synchronously: the whole document
// changed at once, so there is nothing to batch.
func (s *Session) Import(data []byte, mode importer.Mode) (*Documents, []string, error) {
	if mode == importer.ModeMerge {
		logging.Warn("merge import mode is unresolved and behaves like replace")
	}
	doc, err := importer.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	result, err := importer.Import(doc, mode)
	if err != nil {
		return nil, nil, err
	}
	for _, note := range result.Skipped {
		logging.Warn("import skipped fragment", "note", note)
	}

	s.mu.Lock()
	old := s.g
	s.g = result.Graph
	s.mu.Unlock()
	s.compiler.Evict(old)

	docs, err := s.Compile()
	if err != nil {
		return nil, result.Skipped, err
	}
	if s.onUpdate != nil {
		s.onUpdate(*docs)
	}
	return docs, result.Skipped, nil
}

// Compile compiles the current graph and generates its UI schema.
func (s *Session) Compile() (*Documents, error) {
	s.mu.Lock()
	g := s.g
	s.mu.Unlock()

	compiled, err := s.compiler.Compile(g)
	if err != nil {
		return nil, err
	}
	return &Documents{
		Revision: g.Revision(),
		Schema:   compiled,
		UISchema: uischema.Generate(g, compiled),
	}, nil
}

// Validate runs the advisory structural checks plus the cycle scan.
func (s *Session) Validate() ValidationReport {
	g := s.Graph()
	return ValidationReport{
		Issues: g.Validate(),
		Cycles: cycles.FindGraphCycles(g),
	}
}

// apply runs one mutation under the lock and schedules a regeneration.
func (s *Session) apply(mutate func(*graph.SchemaGraph) (*graph.SchemaGraph, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := mutate(s.g)
	if err != nil {
		return err
	}
	s.swap(next)
	return nil
}

// swap installs the next graph value and ticks the debouncer. Callers hold
// the lock.
func (s *Session) swap(next *graph.SchemaGraph) {
	old := s.g
	s.g = next
	s.compiler.Evict(old)
	select {
	case s.changes <- next.Revision():
	default:
		// the debouncer is behind; dropping a tick is fine because only the
		// latest revision is regenerated anyway
	}
}

// regenerate compiles the latest graph and notifies the consumer.
func (s *Session) regenerate() {
	docs, err := s.Compile()
	if err != nil {
		logging.Error("regeneration failed", "error", err)
		return
	}
	logging.Debug("documents regenerated", "revision", docs.Revision)
	if s.onUpdate != nil {
		s.onUpdate(*docs)
	}
}
