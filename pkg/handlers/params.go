package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseAgentID extracts and validates the data agent ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: aid
func ParseAgentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "aid", "invalid_agent_id", "Invalid data agent ID format", logger)
}

// ParseEnvironmentID extracts and validates the environment ID from the request path.
// Expects path parameter: eid
func ParseEnvironmentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "eid", "invalid_environment_id", "Invalid environment ID format", logger)
}

// ParseTableID extracts and validates the imported table ID from the request path.
// Expects path parameter: tid
func ParseTableID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "tid", "invalid_table_id", "Invalid table ID format", logger)
}

// ParseAgentAndEnvironmentIDs extracts and validates both data agent and environment IDs.
// Expects path parameters: aid, eid
func ParseAgentAndEnvironmentIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	agentID, ok := ParseAgentID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	envID, ok := ParseEnvironmentID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return agentID, envID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
