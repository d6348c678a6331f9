package alert

import (
	"context"
	"fmt"
	"html"
	"strings"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/metrics"
	"feedbacker/pkg/utils"
)

const transcriptExcerptLen = 240

// Notifier contract interface
type Notifier interface {
	SendMessage(ctx context.Context, chatID, html string) error
}

// ThresholdSource contract interface
type ThresholdSource interface {
	AlertThreshold(ctx context.Context) float64
}

// dispatcher formats a persisted record into a chat notification and
// fans it out to every configured recipient. Alerts are always sent;
// the threshold only decides whether the title carries the critical
// marker.
type dispatcher struct {
	notifier Notifier
	settings ThresholdSource
	chatIDs  []string
	baseURL  string
}

func NewDispatcher(notifier Notifier, settings ThresholdSource, cfg config.TelegramConfig, baseURL string) *dispatcher {
	return &dispatcher{
		notifier: notifier,
		settings: settings,
		chatIDs:  cfg.ChatIDs,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Send delivers the alert to all recipients and returns how many
// succeeded. It never returns an error: a zero-delivery outcome is
// logged, not raised, because alerting must not fail the submission.
func (d *dispatcher) Send(ctx context.Context, fb *domain.Feedback) int {
	if len(d.chatIDs) == 0 {
		logger.Warn("no alert recipients configured, alert skipped", "feedback_id", fb.ID)
		return 0
	}

	text := d.buildMessage(ctx, fb)

	delivered := 0
	for _, chatID := range d.chatIDs {
		if err := d.notifier.SendMessage(ctx, chatID, text); err != nil {
			logger.Warn("alert delivery failed", "chat_id", chatID, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		logger.Error("alert not delivered to any recipient", "feedback_id", fb.ID)
	} else {
		metrics.AlertsDeliveredTotal.Add(float64(delivered))
		logger.Info("alert delivered", "feedback_id", fb.ID,
			"delivered", delivered, "recipients", len(d.chatIDs))
	}

	return delivered
}

func (d *dispatcher) buildMessage(ctx context.Context, fb *domain.Feedback) string {
	threshold := d.settings.AlertThreshold(ctx)

	critical := ""
	if fb.Sentiment == domain.SentimentNegative && fb.EmotionScore <= threshold {
		critical = " — <b>КРИТИЧНО</b>"
	}

	tags := "—"
	if len(fb.Tags) > 0 {
		tags = html.EscapeString(strings.Join(fb.Tags, ", "))
	}

	device := fb.DeviceID
	if device == "" {
		device = "—"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Новый отзыв</b>%s\n", sentimentIcon(fb.Sentiment), critical)
	fmt.Fprintf(&b, "Магазин: <b>%s</b> · Устройство: <b>%s</b>\n",
		html.EscapeString(fb.ShopID), html.EscapeString(device))
	fmt.Fprintf(&b, "Время: <i>%s</i>\n\n", fb.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Оценка эмоций: <b>%s</b> (%.0f%%)\n",
		html.EscapeString(fb.Sentiment), utils.Clamp01(fb.EmotionScore)*100)
	fmt.Fprintf(&b, "Теги: <b>%s</b>\n", tags)
	if summary := strings.TrimSpace(fb.Summary); summary != "" {
		fmt.Fprintf(&b, "Кратко: “%s”\n", html.EscapeString(summary))
	}
	fmt.Fprintf(&b, `<a href="%s/feedback/%s/full">Детали</a> · <a href="%s/feedback/%s/redirect-audio">Аудио</a>`,
		d.baseURL, fb.ID, d.baseURL, fb.ID)

	if excerpt := excerpt(fb.Transcript); excerpt != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(excerpt))
	}

	return b.String()
}

func sentimentIcon(sentiment string) string {
	switch sentiment {
	case domain.SentimentNegative:
		return "🔴"
	case domain.SentimentPositive:
		return "🟢"
	default:
		return "🟡"
	}
}

func excerpt(transcript string) string {
	t := strings.Join(strings.Fields(transcript), " ")
	runes := []rune(t)
	if len(runes) > transcriptExcerptLen {
		t = string(runes[:transcriptExcerptLen])
	}

	return strings.TrimSpace(t)
}
