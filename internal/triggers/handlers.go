package triggers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tinywideclouds/go-emergency-notifier/internal/delivery"
	"github.com/tinywideclouds/go-emergency-notifier/internal/payload"
	"github.com/tinywideclouds/go-emergency-notifier/internal/recipients"
	"github.com/tinywideclouds/go-emergency-notifier/internal/tokens"
	"github.com/tinywideclouds/go-emergency-notifier/internal/validation"
	"github.com/tinywideclouds/go-emergency-notifier/internal/welcome"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/notification"
)

// Handlers holds the collaborators shared by every event handler.
type Handlers struct {
	resolver *recipients.Resolver
	builder  *payload.Builder
	engine   *delivery.Engine
	tokens   *tokens.Manager
	welcome  *welcome.Guard
	logger   *slog.Logger
}

func NewHandlers(
	resolver *recipients.Resolver,
	builder *payload.Builder,
	engine *delivery.Engine,
	tokenManager *tokens.Manager,
	guard *welcome.Guard,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		resolver: resolver,
		builder:  builder,
		engine:   engine,
		tokens:   tokenManager,
		welcome:  guard,
		logger:   logger.With("component", "TriggerHandlers"),
	}
}

// Register binds every handler onto d.
func (h *Handlers) Register(d *Dispatcher) {
	d.Register(KindMessageCreated, h.MessageCreated)
	d.Register(KindReportCreated, h.ReportCreated)
	d.Register(KindReportUpdated, h.ReportUpdated)
	d.Register(KindAnnouncementCreated, h.AnnouncementCreated)
	d.Register(KindUserCreated, h.UserCreated)
}

// MessageCreated notifies the other side of a chat conversation. Mobile
// senders fan out to every web recipient after the welcome check; web
// senders reply to the conversation owner alone.
func (h *Handlers) MessageCreated(ctx context.Context, ev Event) (Result, error) {
	var msg notification.ChatMessage
	if err := decodeSnapshot("message", ev.After, &msg); err != nil {
		return ResultInvalid, err
	}
	overlay(&msg.OwnerID, ev.Param(ParamUserID))
	overlay(&msg.MessageID, ev.Param(ParamMessageID))
	if err := validation.Event(msg); err != nil {
		return ResultInvalid, err
	}

	log := h.logger.With("owner_id", msg.OwnerID, "sender_id", msg.SenderID, "message_id", msg.MessageID)
	if msg.IsSystemMessage {
		log.Debug("System message; no notification")
		return ResultSkipped, nil
	}
	if msg.SenderID == msg.OwnerID {
		log.Debug("Sender owns the conversation; no notification")
		return ResultSkipped, nil
	}

	channel, err := h.resolver.SenderChannel(ctx, msg.SenderID)
	if err != nil {
		return ResultFailed, err
	}
	log = log.With("sender_channel", channel)

	if channel == notification.ChannelMobile {
		h.welcome.Check(ctx, welcome.Conversation{
			OwnerID:  msg.OwnerID,
			SenderID: msg.SenderID,
			OwnerName: func(ctx context.Context) string {
				return h.displayName(ctx, msg.OwnerID, msg.SenderName)
			},
		})

		targets, err := h.resolver.Targets(ctx, notification.ChannelWeb, msg.SenderID)
		if err != nil {
			return ResultFailed, err
		}
		return h.fanOut(ctx, log, targets, h.builder.ChatMessage(msg)), nil
	}

	owner, err := h.resolver.Get(ctx, msg.OwnerID)
	if errors.Is(err, dispatch.ErrRecipientNotFound) {
		log.Warn("Conversation owner not in directory; no notification")
		return ResultSkipped, nil
	}
	if err != nil {
		return ResultFailed, err
	}
	return h.single(ctx, log, *owner, h.builder.ChatMessage(msg)), nil
}

// ReportCreated alerts every web recipient except the report's creator.
func (h *Handlers) ReportCreated(ctx context.Context, ev Event) (Result, error) {
	var report notification.Report
	if err := decodeSnapshot("report", ev.After, &report); err != nil {
		return ResultInvalid, err
	}
	overlay(&report.ID, ev.Param(ParamReportID))
	if err := validation.Event(report); err != nil {
		return ResultInvalid, err
	}

	targets, err := h.resolver.Targets(ctx, notification.ChannelWeb, report.CreatorID)
	if err != nil {
		return ResultFailed, err
	}
	log := h.logger.With("report_id", report.ID)
	return h.fanOut(ctx, log, targets, h.builder.ReportCreated(report)), nil
}

// ReportUpdated tells the report's creator that its status moved.
func (h *Handlers) ReportUpdated(ctx context.Context, ev Event) (Result, error) {
	var change notification.ReportChange
	if err := decodeSnapshot("before", ev.Before, &change.Before); err != nil {
		return ResultInvalid, err
	}
	if err := decodeSnapshot("after", ev.After, &change.After); err != nil {
		return ResultInvalid, err
	}
	overlay(&change.After.ID, ev.Param(ParamReportID))
	if err := validation.Event(change); err != nil {
		return ResultInvalid, err
	}

	log := h.logger.With("report_id", change.After.ID)
	p, ok := h.builder.ReportStatusChanged(change)
	if !ok {
		log.Debug("Report status unchanged; no notification")
		return ResultSkipped, nil
	}

	creator, err := h.resolver.Get(ctx, change.After.CreatorID)
	if errors.Is(err, dispatch.ErrRecipientNotFound) {
		log.Warn("Report creator not in directory; no notification", "creator_id", change.After.CreatorID)
		return ResultSkipped, nil
	}
	if err != nil {
		return ResultFailed, err
	}
	return h.single(ctx, log, *creator, p), nil
}

// AnnouncementCreated broadcasts to every mobile recipient.
func (h *Handlers) AnnouncementCreated(ctx context.Context, ev Event) (Result, error) {
	var a notification.Announcement
	if err := decodeSnapshot("announcement", ev.After, &a); err != nil {
		return ResultInvalid, err
	}
	overlay(&a.ID, ev.Param(ParamAnnouncementID))
	if err := validation.Event(a); err != nil {
		return ResultInvalid, err
	}

	targets, err := h.resolver.Targets(ctx, notification.ChannelMobile)
	if err != nil {
		return ResultFailed, err
	}
	log := h.logger.With("announcement_id", a.ID, "priority", a.Priority)
	return h.fanOut(ctx, log, targets, h.builder.Announcement(a)), nil
}

// UserCreated tells web recipients about a new mobile registration.
func (h *Handlers) UserCreated(ctx context.Context, ev Event) (Result, error) {
	var u notification.UserRegistration
	if err := decodeSnapshot("user", ev.After, &u); err != nil {
		return ResultInvalid, err
	}
	overlay(&u.ID, ev.Param(ParamUserID))
	if err := validation.Event(u); err != nil {
		return ResultInvalid, err
	}

	log := h.logger.With("user_id", u.ID)
	p, ok := h.builder.UserRegistered(u)
	if !ok {
		log.Debug("New user is not a mobile user; no notification")
		return ResultSkipped, nil
	}

	targets, err := h.resolver.Targets(ctx, notification.ChannelWeb, u.ID)
	if err != nil {
		return ResultFailed, err
	}
	return h.fanOut(ctx, log, targets, p), nil
}

func (h *Handlers) fanOut(ctx context.Context, log *slog.Logger, targets []delivery.Target, p notification.Payload) Result {
	if len(targets) == 0 {
		log.Info("No reachable recipients", "kind", p.Kind)
		return ResultSkipped
	}
	report := h.engine.Deliver(ctx, targets, p)
	cleared := h.tokens.Reconcile(ctx, report)

	log.Info("Notification fan-out complete",
		"kind", p.Kind,
		"success", report.SuccessCount(),
		"failure", report.FailureCount(),
		"transient", report.TransientCount(),
		"tokens_cleared", cleared,
	)
	if report.SuccessCount() == 0 {
		return ResultFailed
	}
	return ResultSent
}

func (h *Handlers) single(ctx context.Context, log *slog.Logger, rec notification.Recipient, p notification.Payload) Result {
	target, ok := recipients.TargetFor(rec)
	if !ok {
		log.Info("Recipient has no token for its channel; no notification", "recipient_id", rec.ID)
		return ResultSkipped
	}
	log = log.With("recipient_id", rec.ID, "channel", target.Channel)

	outcome := h.engine.Send(ctx, target, p)
	switch {
	case outcome.Success:
		log.Info("Notification sent", "kind", p.Kind)
		return ResultSent
	case outcome.Reason == delivery.ReasonInvalidDestination:
		log.Warn("Token is no longer valid; revoking", "err", outcome.Err)
		h.tokens.Revoke(ctx, target)
	default:
		log.Error("Failed to send notification", "err", outcome.Err)
	}
	return ResultFailed
}

// displayName is a best-effort lookup used only for the conversation summary.
func (h *Handlers) displayName(ctx context.Context, id, fallback string) string {
	rec, err := h.resolver.Get(ctx, id)
	if err != nil || rec.DisplayName == "" {
		return fallback
	}
	return rec.DisplayName
}
