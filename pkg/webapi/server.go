// Package webapi exposes the HTTP JSON API: project lifecycle, chat,
// report generation, and polling endpoints.
package webapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seatdesk/pkg/chat"
	"seatdesk/pkg/intake"
	"seatdesk/pkg/logx"
	"seatdesk/pkg/metrics"
	"seatdesk/pkg/persistence"
	"seatdesk/pkg/report"
	"seatdesk/pkg/status"
)

// Server is the HTTP API server.
type Server struct {
	ops          *persistence.DatabaseOperations
	chatService  *chat.Service
	orchestrator *report.Orchestrator
	queries      *metrics.QueryService // nil when no Prometheus is configured
	logger       *logx.Logger
}

// NewServer creates an API server. queries may be nil; the per-project
// metrics endpoint then reports the feature as unavailable.
func NewServer(ops *persistence.DatabaseOperations, chatService *chat.Service, orchestrator *report.Orchestrator, queries *metrics.QueryService) *Server {
	return &Server{
		ops:          ops,
		chatService:  chatService,
		orchestrator: orchestrator,
		queries:      queries,
		logger:       logx.NewLogger("webapi"),
	}
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/projects/", s.handleProject)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// writeJSON sends a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// writeError sends a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProjects implements GET /api/projects and POST /api/projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListProjects(w, r)
	case http.MethodPost:
		s.handleCreateProject(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createProjectRequest struct {
	Intake      intake.Intake `json:"intake,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	project := persistence.NewProject(strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), req.Intake)
	if err := s.ops.CreateProject(project); err != nil {
		s.logger.Error("Failed to create project: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	s.logger.Info("Created project %s (%s)", project.ID, project.Title)
	s.writeJSON(w, http.StatusCreated, s.projectView(project))
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	projects, err := s.ops.ListProjects()
	if err != nil {
		s.logger.Error("Failed to list projects: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	views := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		views = append(views, s.projectView(p))
	}
	s.writeJSON(w, http.StatusOK, views)
	s.logger.Debug("Served project list: %d projects", len(projects))
}

// projectView augments the stored project with derived intake state.
func (s *Server) projectView(p *persistence.Project) map[string]any {
	return map[string]any{
		"id":                  p.ID,
		"title":               p.Title,
		"description":         p.Description,
		"status":              p.Status,
		"intake":              p.Intake,
		"missing_fields":      intake.MissingFields(p.Intake),
		"intake_complete":     intake.IsComplete(p.Intake),
		"report_location":     p.ReportLocation,
		"report_generated_at": p.ReportGeneratedAt,
		"report_error":        p.ReportError,
		"generation_attempt":  p.GenerationAttempt,
		"created_at":          p.CreatedAt,
		"updated_at":          p.UpdatedAt,
	}
}

// handleProject routes /api/projects/{id} and its sub-resources.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "project ID required")
		return
	}

	parts := strings.SplitN(path, "/", 3)
	projectID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetProject(w, projectID)
		case http.MethodPatch:
			s.handleUpdateProject(w, r, projectID)
		case http.MethodDelete:
			s.handleDeleteProject(w, projectID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "chat":
		s.handleChat(w, r, projectID)
	case "messages":
		s.handleMessages(w, r, projectID)
	case "regenerate":
		s.handleRegenerate(w, r, projectID)
	case "status":
		s.handleStatus(w, r, projectID)
	case "report":
		s.handleReport(w, r, projectID)
	case "documents":
		docID := ""
		if len(parts) == 3 {
			docID = parts[2]
		}
		s.handleDocuments(w, r, projectID, docID)
	case "metrics":
		s.handleProjectMetrics(w, r, projectID)
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *Server) handleGetProject(w http.ResponseWriter, projectID string) {
	project, err := s.ops.GetProject(projectID)
	if err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}
	s.writeJSON(w, http.StatusOK, s.projectView(project))
}

type updateProjectRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Intake      map[string]any `json:"intake,omitempty"`
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request, projectID string) {
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title cannot be empty")
		return
	}

	project, err := s.ops.GetProject(projectID)
	if err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}

	if err := s.ops.UpdateProjectMeta(projectID, req.Title, req.Description); err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}

	if len(req.Intake) > 0 {
		// Explicit edits win outright; empty values clear the field.
		edited := project.Intake.Clone()
		if edited.Apply(req.Intake) {
			if err := s.ops.UpdateIntake(projectID, edited); err != nil {
				s.logger.Error("Failed to update intake for project %s: %v", projectID, err)
				s.writeError(w, http.StatusInternalServerError, "failed to update intake")
				return
			}
			// Editing the facts makes any existing report stale.
			if project.Status != status.Working {
				if err := s.ops.UpdateStatus(projectID, status.Working, "", nil, ""); err != nil {
					s.logger.Error("Failed to reset status for project %s: %v", projectID, err)
					s.writeError(w, http.StatusInternalServerError, "failed to update project status")
					return
				}
			}
		}
	}

	s.handleGetProject(w, projectID)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, projectID string) {
	if err := s.ops.DeleteProject(projectID); err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}
	s.logger.Info("Deleted project %s", projectID)
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat implements POST /api/projects/{id}/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.chatService.SubmitMessage(r.Context(), projectID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			s.writeError(w, http.StatusBadRequest, "message cannot be empty")
		case errors.Is(err, persistence.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "project not found")
		default:
			s.logger.Error("Chat turn failed for project %s: %v", projectID, err)
			s.writeError(w, http.StatusInternalServerError, "chat turn failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleMessages implements GET /api/projects/{id}/messages.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.ops.GetProject(projectID); err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}
	messages, err := s.ops.ListMessages(projectID)
	if err != nil {
		s.logger.Error("Failed to list messages for project %s: %v", projectID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []*persistence.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

// handleRegenerate implements POST /api/projects/{id}/regenerate.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	attempt, started, err := s.orchestrator.Generate(projectID)
	if err != nil {
		var precondition *report.PreconditionError
		switch {
		case errors.As(err, &precondition):
			s.writeJSON(w, http.StatusConflict, map[string]any{
				"error":          precondition.Error(),
				"missing_fields": precondition.Missing,
			})
		case errors.Is(err, persistence.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "project not found")
		default:
			s.logger.Error("Regenerate failed for project %s: %v", projectID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to start generation")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"generation_attempt": attempt,
		"started":            started,
	})
}

// handleStatus implements GET /api/projects/{id}/status, the polling endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := s.orchestrator.Status(projectID)
	if err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleReport implements GET /api/projects/{id}/report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	project, err := s.ops.GetProject(projectID)
	if err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}
	if project.ReportLocation == "" {
		s.writeError(w, http.StatusNotFound, "no report available for this project")
		return
	}

	text, err := s.orchestrator.ReportText(projectID)
	if err != nil {
		s.logger.Error("Failed to read report for project %s: %v", projectID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"project_id":          projectID,
		"report_location":     project.ReportLocation,
		"report_generated_at": project.ReportGeneratedAt,
		"content":             text,
	})
}

type attachDocumentRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	ByteSize int64  `json:"byte_size,omitempty"`
}

// handleDocuments implements the document metadata sub-resource.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, projectID, docID string) {
	if _, err := s.ops.GetProject(projectID); err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}

	switch {
	case r.Method == http.MethodGet && docID == "":
		docs, err := s.ops.ListDocuments(projectID)
		if err != nil {
			s.logger.Error("Failed to list documents for project %s: %v", projectID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to list documents")
			return
		}
		if docs == nil {
			docs = []*persistence.Document{}
		}
		s.writeJSON(w, http.StatusOK, docs)

	case r.Method == http.MethodPost && docID == "":
		var req attachDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Filename) == "" {
			s.writeError(w, http.StatusBadRequest, "filename is required")
			return
		}
		doc := &persistence.Document{
			ID:        persistence.GenerateDocumentID(),
			ProjectID: projectID,
			Filename:  strings.TrimSpace(req.Filename),
			MimeType:  req.MimeType,
			ByteSize:  req.ByteSize,
		}
		if err := s.ops.InsertDocument(doc); err != nil {
			s.logger.Error("Failed to attach document to project %s: %v", projectID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to attach document")
			return
		}
		s.writeJSON(w, http.StatusCreated, doc)

	case r.Method == http.MethodDelete && docID != "":
		if err := s.ops.DeleteDocument(docID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "document not found")
				return
			}
			s.logger.Error("Failed to delete document %s: %v", docID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to delete document")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProjectMetrics implements GET /api/projects/{id}/metrics.
func (s *Server) handleProjectMetrics(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.queries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "metrics querying is not configured")
		return
	}
	if _, err := s.ops.GetProject(projectID); err != nil {
		s.respondLookupError(w, err, projectID)
		return
	}

	projectMetrics, err := s.queries.GetProjectMetrics(r.Context(), projectID)
	if err != nil {
		s.logger.Error("Failed to query metrics for project %s: %v", projectID, err)
		s.writeError(w, http.StatusBadGateway, "failed to query metrics")
		return
	}
	s.writeJSON(w, http.StatusOK, projectMetrics)
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, projectID string) {
	if errors.Is(err, persistence.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	}
	s.logger.Error("Lookup failed for project %s: %v", projectID, err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
