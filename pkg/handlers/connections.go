package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/services"
)

// TestConnectionRequest is the body of POST /api/test-connection. Config holds the
// non-secret connection parameters; Secrets is the credential bundle and is never
// persisted or echoed back.
type TestConnectionRequest struct {
	Engine  string              `json:"engine"`
	Config  map[string]any      `json:"config"`
	Secrets models.SecretBundle `json:"secrets"`
}

// ListEnginesResponse wraps the registered adapters.
type ListEnginesResponse struct {
	Engines []datasource.AdapterInfo `json:"engines"`
}

// ConnectionHandler serves connection tests and the engine catalog.
type ConnectionHandler struct {
	introspector services.SchemaIntrospector
	factory      datasource.AdapterFactory
	logger       *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(introspector services.SchemaIntrospector, factory datasource.AdapterFactory, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{introspector: introspector, factory: factory, logger: logger}
}

// RegisterRoutes registers the connection handler's routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/test-connection", h.TestConnection)
	mux.HandleFunc("GET /api/engines", h.ListEngines)
}

// TestConnection handles POST /api/test-connection.
// A failed connection is still a 200 with success=false, except for an unknown
// engine which is a client error.
func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Engine == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_engine", "engine is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	engine := models.ParseEngine(req.Engine)
	result := h.introspector.TestConnection(r.Context(), engine, models.ProfileFromMap(req.Config), req.Secrets)

	status := http.StatusOK
	if !result.Success && result.ErrorKind == string(apperrors.KindConfiguration) {
		status = http.StatusBadRequest
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode connection test response", zap.Error(err))
	}
}

// ListEngines handles GET /api/engines.
func (h *ConnectionHandler) ListEngines(w http.ResponseWriter, r *http.Request) {
	engines := h.factory.ListEngines()
	if engines == nil {
		engines = []datasource.AdapterInfo{}
	}
	if err := WriteJSON(w, http.StatusOK, ListEnginesResponse{Engines: engines}); err != nil {
		h.logger.Error("Failed to encode engines response", zap.Error(err))
	}
}
