// Package payload maps trigger events onto channel-neutral notification payloads.
package payload

import (
	"fmt"
	"strings"

	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// DefaultBrand titles chat notifications whose sender has no display name.
const DefaultBrand = "Emergency Response"

// Builder constructs payloads. It holds no state beyond the brand string and
// is safe for concurrent use.
type Builder struct {
	brand string
}

func NewBuilder(brand string) *Builder {
	if strings.TrimSpace(brand) == "" {
		brand = DefaultBrand
	}
	return &Builder{brand: brand}
}

// Brand is the fallback sender name used by this builder.
func (b *Builder) Brand() string {
	return b.brand
}

// ChatMessage titles the payload with the sender and uses the text as body,
// falling back to a media label when the message carries no text.
func (b *Builder) ChatMessage(msg notification.ChatMessage) notification.Payload {
	title := strings.TrimSpace(msg.SenderName)
	if title == "" {
		title = b.brand
	}

	data := map[string]string{
		notification.DataKeyType: string(notification.KindChatMessage),
		"userId":                 msg.OwnerID,
		"messageId":              msg.MessageID,
		"senderId":               msg.SenderID,
		"senderName":             title,
	}
	if msg.FileName != "" {
		data["fileName"] = msg.FileName
	}

	return notification.Payload{
		Kind:  notification.KindChatMessage,
		Title: title,
		Body:  chatBody(msg),
		Data:  data,
	}
}

// chatBody picks image, video, audio, then file when there is no text.
func chatBody(msg notification.ChatMessage) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return msg.Text
	}
	switch {
	case msg.ImageURL != "":
		return "📷 Sent a photo"
	case msg.VideoURL != "":
		return "🎥 Sent a video"
	case msg.AudioURL != "":
		return "🎵 Sent an audio"
	case msg.FileURL != "":
		name := msg.FileName
		if name == "" {
			name = "a file"
		}
		return fmt.Sprintf("📎 Sent %s", name)
	default:
		return "New message"
	}
}

// UserRegistered announces a new mobile user to administrators. ok is false
// for users that classify onto the web channel.
func (b *Builder) UserRegistered(u notification.UserRegistration) (p notification.Payload, ok bool) {
	if notification.Classify(u.Recipient()) != notification.ChannelMobile {
		return notification.Payload{}, false
	}

	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = "A new user"
	}

	return notification.Payload{
		Kind:  notification.KindNewUser,
		Title: "👤 New User Registered",
		Body:  fmt.Sprintf("%s has registered on the mobile app.", name),
		Data: map[string]string{
			notification.DataKeyType: string(notification.KindNewUser),
			"userId":                 u.ID,
			"displayName":            name,
		},
	}, true
}
