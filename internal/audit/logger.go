// Package audit records administrative changes as structured log entries.
package audit

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one audited action.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

func (e Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Time("timestamp", e.Timestamp).
		Str("action", e.Action).
		Str("actor_id", e.ActorID).
		Str("ip_address", e.IPAddress).
		Str("status", e.Status)
	if e.ResourceType != "" {
		ev.Str("resource_type", e.ResourceType)
	}
	if e.ResourceID != "" {
		ev.Str("resource_id", e.ResourceID)
	}
	if len(e.Details) > 0 {
		d := zerolog.Dict()
		for k, v := range e.Details {
			d.Str(k, v)
		}
		ev.Dict("details", d)
	}
}

// Logger writes audit entries under the "audit" key.
type Logger struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

func (l *Logger) Log(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	ev := l.logger.Info()
	if entry.Status == StatusFailure {
		ev = l.logger.Warn()
	}
	ev.Object("audit", entry).Msg(entry.Action)
}

// LogFromRequest records an action taken by actorID in the scope of r. The
// request id, when present, is added to the details.
func (l *Logger) LogFromRequest(r *http.Request, actorID, action, resourceType, resourceID, status string, details map[string]string) {
	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		if details == nil {
			details = make(map[string]string, 1)
		}
		details["request_id"] = requestID
	}
	l.Log(Entry{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		Status:       status,
		Details:      details,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
