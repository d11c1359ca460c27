package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/services"
)

// ListTablesResponse wraps the tables discovered in an environment.
type ListTablesResponse struct {
	Tables []models.DiscoveredTable `json:"tables"`
}

// ImportTablesRequest is the body of the import endpoint.
type ImportTablesRequest struct {
	Tables []string `json:"tables"`
}

// ImportTablesResponse lists the tables that were imported. Requested tables that
// failed are absent; the count of requested tables lets callers tell.
type ImportTablesResponse struct {
	Requested int                   `json:"requested"`
	Imported  []models.ImportResult `json:"imported"`
}

// AgentHandler serves discovery, import and relationship analysis for data agents.
type AgentHandler struct {
	introspector services.SchemaIntrospector
	importer     services.TableImportService
	inference    services.RelationshipInferenceService
	logger       *zap.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(
	introspector services.SchemaIntrospector,
	importer services.TableImportService,
	inference services.RelationshipInferenceService,
	logger *zap.Logger,
) *AgentHandler {
	return &AgentHandler{
		introspector: introspector,
		importer:     importer,
		inference:    inference,
		logger:       logger,
	}
}

// RegisterRoutes registers the agent handler's routes on the given mux.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agents/{aid}/environments/{eid}/tables", h.ListTables)
	mux.HandleFunc("POST /api/agents/{aid}/environments/{eid}/import", h.ImportTables)
	mux.HandleFunc("DELETE /api/agents/{aid}/tables/{tid}", h.DeleteTable)
	mux.HandleFunc("POST /api/agents/{aid}/relationships/analyze", h.AnalyzeRelationships)
}

// ListTables handles GET /api/agents/{aid}/environments/{eid}/tables.
func (h *AgentHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	agentID, envID, ok := ParseAgentAndEnvironmentIDs(w, r, h.logger)
	if !ok {
		return
	}

	tables, err := h.introspector.DiscoverTables(r.Context(), agentID, envID)
	if err != nil {
		writeServiceError(w, err, "discover_tables_failed", "Failed to discover tables", h.logger)
		return
	}
	if tables == nil {
		tables = []models.DiscoveredTable{}
	}

	if err := WriteJSON(w, http.StatusOK, ListTablesResponse{Tables: tables}); err != nil {
		h.logger.Error("Failed to encode tables response", zap.Error(err))
	}
}

// ImportTables handles POST /api/agents/{aid}/environments/{eid}/import.
func (h *AgentHandler) ImportTables(w http.ResponseWriter, r *http.Request) {
	agentID, envID, ok := ParseAgentAndEnvironmentIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req ImportTablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.Tables) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_tables", "At least one table name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	results, err := h.importer.Import(r.Context(), agentID, envID, req.Tables)
	if err != nil {
		writeServiceError(w, err, "import_failed", "Failed to import tables", h.logger)
		return
	}
	if results == nil {
		results = []models.ImportResult{}
	}

	response := ImportTablesResponse{Requested: len(req.Tables), Imported: results}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode import response", zap.Error(err))
	}
}

// DeleteTable handles DELETE /api/agents/{aid}/tables/{tid}.
func (h *AgentHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	agentID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}
	tableID, ok := ParseTableID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.importer.DeleteTable(r.Context(), agentID, tableID); err != nil {
		writeServiceError(w, err, "delete_table_failed", "Failed to delete table", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeRelationships handles POST /api/agents/{aid}/relationships/analyze.
func (h *AgentHandler) AnalyzeRelationships(w http.ResponseWriter, r *http.Request) {
	agentID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.inference.AnalyzeRelationships(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, err, "analyze_relationships_failed", "Failed to analyze relationships", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode analysis response", zap.Error(err))
	}
}
