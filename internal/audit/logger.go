package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for account events.
// Its Record method plugs into the services' WithAudit hooks.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

var messages = map[string]string{
	"signup":                         "User signed up",
	"welcome_email_failed":           "Welcome email could not be sent",
	"login_success":                  "User logged in successfully",
	"login_failed":                   "Login attempt failed",
	"logout":                         "User logged out",
	"password_reset_requested":       "Password reset requested",
	"password_reset_rollback_failed": "Password reset token could not be cleared",
	"password_reset_completed":       "Password reset completed",
	"password_changed":               "User password changed",
	"user_created":                   "User created by admin",
	"user_updated":                   "User updated by admin",
	"user_deleted":                   "User deleted by admin",
}

var warnActions = map[string]bool{
	"welcome_email_failed":           true,
	"login_failed":                   true,
	"password_reset_rollback_failed": true,
	"user_deleted":                   true,
}

// Record logs one audit event. Email addresses are masked.
func (l *Logger) Record(action string, fields map[string]string) {
	ev := l.log.Info()
	if warnActions[action] {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}

	msg, ok := messages[action]
	if !ok {
		msg = strings.ReplaceAll(action, "_", " ")
	}
	ev.Msg(msg)
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
