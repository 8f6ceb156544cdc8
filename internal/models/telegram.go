package models

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// Enabled reports whether both the bot token and the chat ID are present.
func (c *TelegramConfig) Enabled() bool {
	return c != nil && c.BotToken != "" && c.ChatID != ""
}

// NotificationOutcome holds the result of a Telegram notification.
type NotificationOutcome struct {
	Delivered bool
	Response  string // raw API response body, or a description of the failure
	Error     error
}
