// Package tokens forgets device tokens the push gateway reported as permanently invalid.
package tokens

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-emergency-notifier/internal/delivery"
	"github.com/tinywideclouds/go-emergency-notifier/internal/metrics"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
)

// Manager clears token fields on recipient records. All work is best effort:
// persistence failures are logged and never returned to the handler.
type Manager struct {
	directory dispatch.RecipientDirectory
	logger    *slog.Logger
}

func NewManager(directory dispatch.RecipientDirectory, logger *slog.Logger) *Manager {
	return &Manager{
		directory: directory,
		logger:    logger.With("component", "TokenManager"),
	}
}

// Reconcile revokes every invalid-destination target in the report and
// returns how many tokens were actually cleared.
func (m *Manager) Reconcile(ctx context.Context, report delivery.Report) int {
	invalid := report.Invalid()
	if len(invalid) == 0 {
		return 0
	}

	m.logger.Info("Cleaning up invalid tokens", "count", len(invalid))
	cleared := 0
	for _, target := range invalid {
		if m.Revoke(ctx, target) {
			cleared++
		}
	}
	return cleared
}

// Revoke clears the single token field matching the channel the send used.
func (m *Manager) Revoke(ctx context.Context, target delivery.Target) bool {
	err := m.directory.ClearToken(ctx, target.RecipientID, target.Channel)
	if err != nil {
		metrics.TokensRevoked.WithLabelValues(string(target.Channel), "error").Inc()
		m.logger.Warn("Failed to clear invalid token",
			"recipient_id", target.RecipientID, "channel", target.Channel, "err", err)
		return false
	}
	metrics.TokensRevoked.WithLabelValues(string(target.Channel), "ok").Inc()
	m.logger.Debug("Cleared invalid token", "recipient_id", target.RecipientID, "channel", target.Channel)
	return true
}
