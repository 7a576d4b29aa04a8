package payload

import (
	"strings"
	"unicode/utf8"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

const (
	maxAnnouncementBody  = 100
	announcementFallback = "Tap to view the latest announcement."
	ellipsis             = "…"
)

// Announcement broadcasts to mobile users. The title is styled by priority tier.
func (b *Builder) Announcement(a notification.Announcement) notification.Payload {
	label := strings.TrimSpace(a.Type)
	if label == "" {
		label = "Announcement"
	}

	priority := strings.ToLower(strings.TrimSpace(a.Priority))
	var title string
	switch priority {
	case "high":
		title = "🚨 URGENT: " + label
	case "medium":
		title = "📢 " + label
	default:
		title = "ℹ️ " + label
	}

	data := map[string]string{
		notification.DataKeyType: string(notification.KindAnnouncement),
		"announcementId":         a.ID,
		"priority":               priority,
		"announcementType":       label,
	}
	if a.Date != "" {
		data["date"] = a.Date
	}

	return notification.Payload{
		Kind:  notification.KindAnnouncement,
		Title: title,
		Body:  truncate(strings.TrimSpace(a.Description)),
		Data:  data,
	}
}

// truncate keeps descriptions of up to 100 characters as-is. Longer ones are
// cut to the first 97 runes plus an ellipsis.
func truncate(s string) string {
	if s == "" {
		return announcementFallback
	}
	if utf8.RuneCountInString(s) <= maxAnnouncementBody {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxAnnouncementBody-3]) + ellipsis
}
