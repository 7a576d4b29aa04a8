// Package notification contains the public domain models shared by the
// fan-out engine: recipients, channels, payloads, gateway messages and the
// typed trigger events.
package notification

// Channel is the delivery surface a recipient is reached on.
type Channel string

const (
	ChannelMobile Channel = "mobile"
	ChannelWeb    Channel = "web"
)

// Recipient is a directory entry (resident, mobile user or web administrator).
type Recipient struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	MobileToken string `json:"mobileToken,omitempty"`
	WebToken    string `json:"webToken,omitempty"`
}

// Classify decides which channel a recipient operates on.
// A web token, or the absence of any mobile token, routes to web: administrators
// without a device registration must still land on the web channel.
func Classify(r Recipient) Channel {
	if r.WebToken != "" || r.MobileToken == "" {
		return ChannelWeb
	}
	return ChannelMobile
}

// Channel is shorthand for Classify(r).
func (r Recipient) Channel() Channel {
	return Classify(r)
}

// Token returns the destination token held for the given channel, or "".
func (r Recipient) Token(ch Channel) string {
	switch ch {
	case ChannelMobile:
		return r.MobileToken
	case ChannelWeb:
		return r.WebToken
	default:
		return ""
	}
}
