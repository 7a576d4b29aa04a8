package notification

import "maps"

// Kind discriminates notification payloads. It is also written to the
// structured data under the "type" key so clients can deep-link.
type Kind string

const (
	KindChatMessage  Kind = "chat_message"
	KindNewReport    Kind = "new_report"
	KindReportStatus Kind = "report_status"
	KindAnnouncement Kind = "announcement"
	KindNewUser      Kind = "new_user"
)

// DataKeyType is the structured-data key carrying the payload Kind.
const DataKeyType = "type"

// Payload is the channel-neutral notification content.
type Payload struct {
	Kind  Kind              `json:"kind"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Clone returns a deep copy, so per-batch mutation never leaks between batches.
func (p Payload) Clone() Payload {
	out := p
	out.Data = maps.Clone(p.Data)
	return out
}
