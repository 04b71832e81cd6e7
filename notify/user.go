package notify

import "fmt"

// Scope is how much a user wants to be notified about.
type Scope string

const (
	ScopeDisabled      Scope = "disabled"
	ScopeOwnExecutions Scope = "own_executions"
	ScopeAllExecutions Scope = "all_executions"
)

// ParseScope converts a string to a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeDisabled, ScopeOwnExecutions, ScopeAllExecutions:
		return Scope(s), nil
	}
	return "", fmt.Errorf("invalid notification scope: %s", s)
}

// Channel is a notification transport.
type Channel string

const (
	ChannelNone     Channel = "none"
	ChannelMail     Channel = "mail"
	ChannelTelegram Channel = "telegram"
)

// User is a notification recipient.
type User struct {
	ID                   string `json:"id" yaml:"id"`
	Username             string `json:"username,omitempty" yaml:"username,omitempty"`
	Email                string `json:"email,omitempty" yaml:"email,omitempty"`
	Scope                Scope  `json:"notification_scope" yaml:"notification_scope"`
	EmailNotification    bool   `json:"email_notification" yaml:"email_notification"`
	TelegramNotification bool   `json:"telegram_notification" yaml:"telegram_notification"`
	TelegramChatID       int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
}

// Channel returns the single channel the user is notified on: mail when
// enabled, otherwise Telegram when enabled. A channel counts as enabled only
// with a destination, so mail without an address falls back to Telegram.
func (u User) Channel() Channel {
	switch {
	case u.EmailNotification && u.Email != "":
		return ChannelMail
	case u.TelegramNotification && u.TelegramChatID != 0:
		return ChannelTelegram
	}
	return ChannelNone
}

// Recipients returns who is notified about an execution run by executor in
// a project with the given members. The executor is included when their
// scope is own or all executions; other members only with scope all
// executions. The result has no duplicates and keeps first-seen order.
func Recipients(executor User, members []User) []User {
	var out []User
	seen := make(map[string]bool)
	add := func(u User) {
		if seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, u)
	}

	if executor.Scope == ScopeOwnExecutions || executor.Scope == ScopeAllExecutions {
		add(executor)
	}
	for _, m := range members {
		if m.Scope == ScopeAllExecutions {
			add(m)
		}
	}
	return out
}
