package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// telegramMaxLength is the Bot API limit for message text.
const telegramMaxLength = 4096

// TelegramSender sends notifications through a Telegram bot.
type TelegramSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegramSender creates a sender for the bot identified by token.
// An empty baseURL uses DefaultTelegramURL.
func NewTelegramSender(token, baseURL string) (*TelegramSender, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &TelegramSender{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type telegramRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts msg to the user's chat with sendMessage.
func (s *TelegramSender) Send(ctx context.Context, to User, msg Message) error {
	if to.TelegramChatID == 0 {
		return errors.New("user has no telegram chat")
	}

	text := msg.Subject + "\n\n" + msg.Body
	if r := []rune(text); len(r) > telegramMaxLength {
		text = string(r[:telegramMaxLength-1]) + "…"
	}
	payload, err := json.Marshal(telegramRequest{ChatID: to.TelegramChatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// *url.Error embeds the URL, which carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram request failed: %w", uerr.Err)
		}
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var tr telegramResponse
	_ = json.Unmarshal(body, &tr)
	if resp.StatusCode != http.StatusOK || !tr.OK {
		desc := tr.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, desc)
	}
	return nil
}
