package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/logging"
	"github.com/hupe1980/staffmesh/orchestrator"
	"github.com/hupe1980/staffmesh/rag"
)

// Options configure a Server.
type Options struct {
	// Logger receives request-level reporting.
	Logger logging.Logger
	// CheckOrigin overrides the websocket origin policy; nil accepts all
	// origins (suitable behind a trusted proxy).
	CheckOrigin func(r *http.Request) bool
}

// Server wires the orchestrator, stores, and retrieval pipeline to HTTP
// handlers.
type Server struct {
	orch      *orchestrator.Orchestrator
	convs     core.ConversationStore
	documents core.DocumentStore
	retrieval *rag.Pipeline
	mux       *http.ServeMux
	opts      Options
}

// New creates a server. retrieval may be nil; document endpoints then
// report 501.
func New(
	orch *orchestrator.Orchestrator,
	convs core.ConversationStore,
	documents core.DocumentStore,
	retrieval *rag.Pipeline,
	optFns ...func(o *Options),
) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{
		orch:      orch,
		convs:     convs,
		documents: documents,
		retrieval: retrieval,
		mux:       http.NewServeMux(),
		opts:      opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chat/message", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)

	s.mux.HandleFunc("POST /api/conversations", s.handleConversationCreate)
	s.mux.HandleFunc("GET /api/conversations", s.handleConversationList)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleConversationGet)
	s.mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleConversationMessages)
	s.mux.HandleFunc("GET /api/conversations/{id}/executions", s.handleConversationExecutions)
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.handleConversationDelete)

	s.mux.HandleFunc("POST /api/documents", s.handleDocumentIngest)
	s.mux.HandleFunc("GET /api/documents", s.handleDocumentList)
	s.mux.HandleFunc("GET /api/documents/{id}", s.handleDocumentGet)
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.handleDocumentDelete)

	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.mux }

// chatRequest is the chat endpoint's input shape.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	UseRAG         bool   `json:"use_rag,omitempty"`
	Context        struct {
		DocumentIDs []string `json:"document_ids,omitempty"`
	} `json:"context,omitempty"`
}

func (r *chatRequest) toRequest() *orchestrator.Request {
	return &orchestrator.Request{
		Message:        r.Message,
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		UseRAG:         r.UseRAG,
		DocumentIDs:    r.Context.DocumentIDs,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", err.Error()))
		return
	}
	resp, err := s.orch.Handle(r.Context(), req.toRequest())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", err.Error()))
		return
	}
	conv, err := s.convs.Create(r.Context(), req.UserID, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	convs, err := s.convs.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if convs == nil {
		convs = []*core.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.convs.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*core.Message{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleConversationExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.orch.Executions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if execs == nil {
		execs = []*core.TaskExecution{}
	}
	s.writeJSON(w, http.StatusOK, execs)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentIngest(w http.ResponseWriter, r *http.Request) {
	if s.retrieval == nil {
		http.Error(w, "document retrieval not configured", http.StatusNotImplemented)
		return
	}
	var req struct {
		UserID   string `json:"user_id"`
		Filename string `json:"filename"`
		FileType string `json:"file_type"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", err.Error()))
		return
	}
	doc, err := s.retrieval.Ingest(r.Context(), req.UserID, req.Filename, req.FileType, []byte(req.Content))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*core.Document{}
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	if s.retrieval == nil {
		http.Error(w, "document retrieval not configured", http.StatusNotImplemented)
		return
	}
	if err := s.retrieval.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.Agents())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsValidation(err):
		status = http.StatusBadRequest
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsGateway(err):
		status = http.StatusBadGateway
	case core.IsStoreUnavailable(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, http.ErrHandlerTimeout):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		s.opts.Logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
