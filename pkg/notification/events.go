package notification

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingData marks a trigger document that lacks a required field.
// Handlers log it and return without sending anything.
var ErrMissingData = errors.New("missing required event data")

// ChatMessage is a message document created under chats/{userId}/messages.
type ChatMessage struct {
	OwnerID         string `json:"userId" firestore:"-" validate:"required"`
	MessageID       string `json:"messageId" firestore:"-"`
	SenderID        string `json:"senderId" firestore:"senderId" validate:"required"`
	SenderName      string `json:"senderName" firestore:"senderName"`
	Text            string `json:"text,omitempty" firestore:"text,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`
	VideoURL        string `json:"videoUrl,omitempty" firestore:"videoUrl,omitempty"`
	AudioURL        string `json:"audioUrl,omitempty" firestore:"audioUrl,omitempty"`
	FileURL         string `json:"fileUrl,omitempty" firestore:"fileUrl,omitempty"`
	FileName        string `json:"fileName,omitempty" firestore:"fileName,omitempty"`
	IsSystemMessage bool   `json:"isSystemMessage,omitempty" firestore:"isSystemMessage"`

	SentAt time.Time `json:"-" firestore:"timestamp"`
}

// Report is an emergency report document.
type Report struct {
	ID        string `json:"reportId" validate:"required"`
	CreatorID string `json:"userId" validate:"required"`
	Type      string `json:"type,omitempty"`
	Barangay  string `json:"barangay,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ReportChange is the before/after pair of an updated report.
type ReportChange struct {
	Before Report `validate:"-"`
	After  Report `validate:"required"`
}

// StatusChanged reports whether the update actually moved the status.
func (c ReportChange) StatusChanged() bool {
	return strings.TrimSpace(c.Before.Status) != strings.TrimSpace(c.After.Status)
}

// Announcement is a broadcast document for all mobile users.
type Announcement struct {
	ID          string `json:"announcementId" validate:"required"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Date        string `json:"date,omitempty"`
}

// UserRegistration is a newly created user document.
type UserRegistration struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"displayName,omitempty"`
	MobileToken string `json:"mobileToken,omitempty"`
	WebToken    string `json:"webToken,omitempty"`
}

// Recipient views the registration as a directory entry.
func (u UserRegistration) Recipient() Recipient {
	return Recipient{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		MobileToken: u.MobileToken,
		WebToken:    u.WebToken,
	}
}

// ConversationSummary is merged into chats/{ownerId} whenever the service
// writes into a conversation.
type ConversationSummary struct {
	OwnerID               string    `firestore:"userId"`
	OwnerDisplayName      string    `firestore:"userName"`
	LastMessagePreview    string    `firestore:"lastMessage"`
	LastMessageTimestamp  time.Time `firestore:"lastMessageTime"`
	LastMessageSenderName string    `firestore:"lastMessageSender"`
	LastAccessTimestamp   time.Time `firestore:"lastAccessed"`
}
