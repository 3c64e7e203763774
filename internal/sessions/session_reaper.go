package sessions

import (
	"context"
	"log/slog"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
)

// ReapSignedOut consumes session events until the channel closes and removes
// the session record of every session that signed out elsewhere. The next
// request carrying that session's cookie then starts anonymous instead of
// waiting for the record to expire on its own.
func (sessions *SessionStore) ReapSignedOut(ctx context.Context, events <-chan models.SessionEvent) {
	for event := range events {
		slog.Info(
			"SESSION REAPER",
			"message", "observed external session change",
			"sessionID", event.SessionID,
			"loggedIn", event.LoggedIn,
		)
		if event.LoggedIn {
			continue
		}
		err := sessions.sessionRepo.RemoveSession(ctx, event.SessionID)
		if err != nil {
			slog.Error(
				"SESSION REAPER",
				"message", "removing a signed-out session failed",
				"error", err,
				"sessionID", event.SessionID,
			)
		}
	}
}
