package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/formgraph/formgraph/pkg/editor"
	"github.com/formgraph/formgraph/pkg/graph"
	"github.com/formgraph/formgraph/pkg/importer"
	"github.com/formgraph/formgraph/pkg/logging"
	"github.com/formgraph/formgraph/pkg/model"
	"github.com/formgraph/formgraph/pkg/pubsub"
)

// GraphSnapshot is the wire form of one graph value.
type GraphSnapshot struct {
	Revision    uint64              `json:"revision"`
	Nodes       []*model.SchemaNode `json:"nodes"`
	Edges       []*model.Edge       `json:"edges"`
	Definitions map[string]string   `json:"definitions"`
}

func snapshotGraph(g *graph.SchemaGraph) GraphSnapshot {
	return GraphSnapshot{
		Revision:    g.Revision(),
		Nodes:       g.Nodes(),
		Edges:       g.AllEdges(),
		Definitions: g.Definitions(),
	}
}

// Server exposes an editing session over HTTP.
type Server struct {
	router    *mux.Router
	session   *editor.Session
	publisher pubsub.Publisher
}

// NewServer creates a web server around an editing session.
func NewServer(session *editor.Session) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// New subscribers get the current state, not the full history.
	ssePublisher.ConfigureTopic(pubsub.TopicDocument, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})
	ssePublisher.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		session:   session,
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// PublishDocuments pushes a regenerated document pair and the graph value it
// came from to subscribers. Wire it as the session's OnUpdate callback.
func (s *Server) PublishDocuments(docs editor.Documents) {
	if err := s.publisher.Publish(pubsub.TopicDocument, "updated", docs); err != nil {
		logging.Warn("failed to publish documents", "error", err)
	}
	if err := s.publisher.Publish(pubsub.TopicGraph, "updated", snapshotGraph(s.session.Graph())); err != nil {
		logging.Warn("failed to publish graph", "error", err)
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/document", s.handleSubscribe(pubsub.TopicDocument)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/graph", s.handleSubscribe(pubsub.TopicGraph)).Methods("GET")

	// Mutations
	s.router.HandleFunc("/api/nodes", s.handleAddNode).Methods("POST")
	s.router.HandleFunc("/api/nodes/{id}", s.handleUpdateNode).Methods("PATCH")
	s.router.HandleFunc("/api/nodes/{id}", s.handleRemoveNode).Methods("DELETE")
	s.router.HandleFunc("/api/nodes/{id}/move", s.handleMoveNode).Methods("POST")
	s.router.HandleFunc("/api/nodes/{id}/reorder", s.handleReorderNode).Methods("POST")
	s.router.HandleFunc("/api/definitions", s.handleSaveAsDefinition).Methods("POST")
	s.router.HandleFunc("/api/refs", s.handleCreateRef).Methods("POST")
	s.router.HandleFunc("/api/import", s.handleImport).Methods("POST")

	// Reads
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/schema", s.handleSchema).Methods("GET")
	s.router.HandleFunc("/api/uischema", s.handleUISchema).Methods("GET")
	s.router.HandleFunc("/api/validate", s.handleValidate).Methods("GET")
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Send initial comment to establish connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.Warn("failed to write SSE event", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

type addNodeRequest struct {
	Node     *model.SchemaNode `json:"node"`
	ParentID string            `json:"parentId"`
	EdgeType model.EdgeType    `json:"edgeType"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Node == nil {
		http.Error(w, "node is required", http.StatusBadRequest)
		return
	}

	id, err := s.session.AddNode(req.Node, req.ParentID, req.EdgeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.UpdateNode(mux.Vars(r)["id"], patch); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveNode(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveNodeRequest struct {
	ParentID string         `json:"parentId"`
	EdgeType model.EdgeType `json:"edgeType"`
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	var req moveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.MoveNode(mux.Vars(r)["id"], req.ParentID, req.EdgeType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderNodeRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleReorderNode(w http.ResponseWriter, r *http.Request) {
	var req reorderNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.ReorderNode(mux.Vars(r)["id"], req.Index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveDefinitionRequest struct {
	Name       string `json:"name"`
	NodeID     string `json:"nodeId"`
	Disconnect bool   `json:"disconnect"`
}

func (s *Server) handleSaveAsDefinition(w http.ResponseWriter, r *http.Request) {
	var req saveDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.NodeID == "" {
		http.Error(w, "name and nodeId are required", http.StatusBadRequest)
		return
	}

	if err := s.session.SaveAsDefinition(req.Name, req.NodeID, req.Disconnect); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRefRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
	Key      string `json:"key"`
}

func (s *Server) handleCreateRef(w http.ResponseWriter, r *http.Request) {
	var req createRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := s.session.CreateRefToDefinition(req.Name, req.ParentID, req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type importResponse struct {
	Documents *editor.Documents `json:"documents"`
	Skipped   []string          `json:"skipped,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mode := importer.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = importer.ModeReplace
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	docs, skipped, err := s.session.Import(body, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Documents: docs, Skipped: skipped})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotGraph(s.session.Graph()))
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	docs, err := s.session.Compile()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs.Schema)
}

func (s *Server) handleUISchema(w http.ResponseWriter, r *http.Request) {
	docs, err := s.session.Compile()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs.UISchema)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Validate())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

/// writeError maps editing errors to status codes: missing targets are 404,
// structural conflicts are 409, malformed input is 400, and a graph that
// cannot compile is 422.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound    *model.NodeNotFoundError
		defNotFound *model.DefinitionNotFoundError
		cycle       *model.CycleError
		rootRemoval *model.RootRemovalError
		dupDef      *model.DuplicateDefinitionError
		branchEdge  *model.BranchEdgeError
		importErr   *model.ImportError
		compileErr  *model.CompileError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound), errors.As(err, &defNotFound):
		status = http.StatusNotFound
	case errors.As(err, &cycle), errors.As(err, &rootRemoval), errors.As(err, &dupDef),
		errors.As(err, &branchEdge):
		status = http.StatusConflict
	case errors.As(err, &importErr):
		status = http.StatusBadRequest
	case errors.As(err, &compileErr):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ServeHTTP makes the server usable as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the web server on the specified port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.router)
}
