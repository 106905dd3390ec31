package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/audit"
)

// recordAudit logs an admin change when an audit logger is configured.
func recordAudit(logger *audit.Logger, r *http.Request, action, resourceType, resourceID string, err error) {
	if logger == nil {
		return
	}
	actor := "unknown"
	if claims := middleware.Claims(r.Context()); claims != nil {
		actor = claims.Subject
	}
	status := audit.StatusSuccess
	var details map[string]string
	if err != nil {
		status = audit.StatusFailure
		details = map[string]string{"error": err.Error()}
	}
	logger.LogFromRequest(r, actor, action, resourceType, resourceID, status, details)
}
