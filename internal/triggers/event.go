package triggers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// Kind names a watched document lifecycle event.
type Kind string

const (
	KindMessageCreated      Kind = "message.created"
	KindReportCreated       Kind = "report.created"
	KindReportUpdated       Kind = "report.updated"
	KindAnnouncementCreated Kind = "announcement.created"
	KindUserCreated         Kind = "user.created"
)

// Path parameter names carried in Event.Params.
const (
	ParamUserID         = "userId"
	ParamMessageID      = "messageId"
	ParamReportID       = "reportId"
	ParamAnnouncementID = "announcementId"
)

// Event is the envelope for one document mutation. Before and After are the
// raw JSON snapshots of the document; either may be absent depending on Kind.
type Event struct {
	ID     string            `json:"id,omitempty"`
	Kind   Kind              `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
	Before json.RawMessage   `json:"before,omitempty"`
	After  json.RawMessage   `json:"after,omitempty"`
}

// Param returns a path parameter, or "" when absent.
func (e Event) Param(name string) string {
	return e.Params[name]
}

func decodeSnapshot(name string, raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: no %s snapshot", notification.ErrMissingData, name)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: malformed %s snapshot: %v", notification.ErrMissingData, name, err)
	}
	return nil
}

// overlay fills dst from a path parameter when the snapshot left it empty.
func overlay(dst *string, param string) {
	if *dst == "" {
		*dst = param
	}
}
