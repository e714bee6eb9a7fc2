// Package audit records list mutations that change who can see what.
package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Actions recorded by the lists API.
const (
	ActionListCreated  = "list.created"
	ActionListRenamed  = "list.renamed"
	ActionListDeleted  = "list.deleted"
	ActionSharingSet   = "list.sharing_updated"
	ActionEventAdded   = "list.event_added"
	ActionEventRemoved = "list.event_removed"
)

// Entry is a single audit record.
type Entry struct {
	Action  string
	ActorID int64
	ListID  string
	Status  string // "success" or "failure"
	Details map[string]string
}

// Logger writes audit entries as structured log lines tagged
// component=audit. A nil *Logger discards everything.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{log: base.With().Str("component", "audit").Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	ev := l.log.Info().
		Str("action", entry.Action).
		Str("status", entry.Status)
	if entry.ActorID != 0 {
		ev = ev.Int64("actor_id", entry.ActorID)
	}
	if entry.ListID != "" {
		ev = ev.Str("list_id", entry.ListID)
	}
	if len(entry.Details) > 0 {
		ev = ev.Interface("details", entry.Details)
	}
	ev.Msg("audit")
}

// Success records a completed mutation made through r.
func (l *Logger) Success(r *http.Request, action string, actorID int64, listID string, details map[string]string) {
	if l == nil {
		return
	}
	if details == nil {
		details = map[string]string{}
	}
	details["ip"] = clientIP(r)
	l.Log(Entry{Action: action, ActorID: actorID, ListID: listID, Status: "success", Details: details})
}

// IDs renders user ids for the details map.
func IDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
