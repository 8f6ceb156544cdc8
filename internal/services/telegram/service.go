// Package telegram provides Telegram notification services.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// MaxMessageLength is the Bot API limit for a single message, in characters.
const MaxMessageLength = 4096

const truncationMarker = "\n[... truncated]"

// Service defines the interface for Telegram notification operations.
type Service interface {
	Send(ctx context.Context, cfg models.TelegramConfig, text string) (*models.NotificationOutcome, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.telegram.org",
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// sendMessageRequest is the request body for Telegram sendMessage API.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope of every Bot API response.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send delivers text as a plain message. Delivery problems are reported in
// the outcome, never as an error.
func (s *Impl) Send(ctx context.Context, cfg models.TelegramConfig, text string) (*models.NotificationOutcome, error) {
	outcome := &models.NotificationOutcome{}

	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Int("length", utf8.RuneCountInString(text)).
		Msg("sending Telegram notification")

	reqBody := sendMessageRequest{
		ChatID:                cfg.ChatID,
		Text:                  truncate(text, MaxMessageLength),
		DisableWebPagePreview: true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		outcome.Error = fmt.Errorf("failed to marshal request: %w", err)
		return outcome, nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		// The URL embeds the token; do not wrap the raw error.
		outcome.Error = fmt.Errorf("failed to create request")
		return outcome, nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		outcome.Error = fmt.Errorf("failed to send request: %w", redact(err, cfg.BotToken))
		return outcome, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		outcome.Error = fmt.Errorf("failed to read response: %w", err)
		return outcome, nil
	}
	outcome.Response = strings.TrimSpace(string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome.Error = fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		return outcome, nil
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && !apiResp.OK {
		outcome.Error = fmt.Errorf("telegram API rejected message: %s", apiResp.Description)
		return outcome, nil
	}

	outcome.Delivered = true
	s.logger.Info().Msg("Telegram notification sent successfully")

	return outcome, nil
}

// truncate shortens text to at most limit characters, marking the cut.
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	keep := limit - utf8.RuneCountInString(truncationMarker)
	return string(runes[:keep]) + truncationMarker
}

// redact removes the bot token from transport errors, which quote the URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}
