package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const telegramAPIURL = "https://api.telegram.org"

var ErrDelivery = errors.New("channel delivery failed")

// Delivery is the outbound channel posts are published to.
type Delivery interface {
	Send(ctx context.Context, text string) (int64, error)
	Edit(ctx context.Context, messageID int64, text string) error
}

type telegramService struct {
	client *http.Client
	apiURL string
	token  string
	chatID string
}

// NewTelegramService posts to a channel through the Telegram Bot API. Texts
// are sent as HTML without link previews.
func NewTelegramService(token, chatID, apiURL string) Delivery {
	if apiURL == "" {
		apiURL = telegramAPIURL
	}
	return &telegramService{
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
	}
}

type telegramMessageRequest struct {
	ChatID                string `json:"chat_id"`
	MessageID             int64  `json:"message_id,omitempty"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (s *telegramService) Send(ctx context.Context, text string) (int64, error) {
	resp, err := s.call(ctx, "sendMessage", telegramMessageRequest{
		ChatID:                s.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

func (s *telegramService) Edit(ctx context.Context, messageID int64, text string) error {
	_, err := s.call(ctx, "editMessageText", telegramMessageRequest{
		ChatID:                s.chatID,
		MessageID:             messageID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	return err
}

func (s *telegramService) call(ctx context.Context, method string, payload any) (*telegramResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.apiURL, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the error text carries the URL and with it the bot token
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDelivery, method, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s request failed", ErrDelivery, method)
	}
	defer resp.Body.Close()

	var decoded telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response (status %d): %v", ErrDelivery, method, resp.StatusCode, err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("%w: %s: %s", ErrDelivery, method, decoded.Description)
	}
	return &decoded, nil
}
