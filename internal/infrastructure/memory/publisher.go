package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
)

// LogNotifier writes account emails to the log instead of sending them.
// It keeps what it "sent" so local tooling and tests can read reset links.
type LogNotifier struct {
	log zerolog.Logger

	mu      sync.Mutex
	welcome []auth.WelcomeEvent
	resets  []auth.PasswordResetEvent
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) NotifyWelcome(ctx context.Context, evt auth.WelcomeEvent) error {
	n.mu.Lock()
	n.welcome = append(n.welcome, evt)
	n.mu.Unlock()

	n.log.Info().Str("user_id", evt.UserID).Str("email", evt.Email).Str("url", evt.URL).Msg("welcome email")
	return nil
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	n.mu.Lock()
	n.resets = append(n.resets, evt)
	n.mu.Unlock()

	n.log.Info().Str("user_id", evt.UserID).Str("email", evt.Email).Str("url", evt.URL).Msg("password reset email")
	return nil
}

func (n *LogNotifier) Welcomes() []auth.WelcomeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.WelcomeEvent(nil), n.welcome...)
}

func (n *LogNotifier) PasswordResets() []auth.PasswordResetEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.PasswordResetEvent(nil), n.resets...)
}
