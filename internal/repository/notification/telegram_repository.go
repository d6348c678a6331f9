package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"feedbacker/pkg/config"
)

const telegramAPI = "https://api.telegram.org"

type TelegramRepository struct {
	botToken string
	client   *http.Client
}

func NewTelegramRepository(cfg config.TelegramConfig) *TelegramRepository {
	return &TelegramRepository{
		botToken: cfg.BotToken,
		client:   &http.Client{Timeout: 8 * time.Second},
	}
}

type sendMessagePayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (r *TelegramRepository) SendMessage(ctx context.Context, chatID, html string) error {
	if r.botToken == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}

	body, err := json.Marshal(sendMessagePayload{
		ChatID:                chatID,
		Text:                  html,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPI, r.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer res.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	_ = json.NewDecoder(res.Body).Decode(&out)

	if res.StatusCode != http.StatusOK || !out.OK {
		if out.Description != "" {
			return fmt.Errorf("telegram sendMessage: %s", out.Description)
		}

		return fmt.Errorf("telegram sendMessage: status %d", res.StatusCode)
	}

	return nil
}
