package messages

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayer-reminder/internal/models"
)

var prayerNames = map[models.PrayerKey]struct{ en, ar string }{
	models.Imsak:    {"Imsak", "الإمساك"},
	models.Fajr:     {"Fajr", "الفجر"},
	models.Shuruq:   {"Shuruq", "الشروق"},
	models.Dhuhr:    {"Dhuhr", "الظهر"},
	models.Asr:      {"Asr", "العصر"},
	models.Maghrib:  {"Maghrib", "المغرب"},
	models.Isha:     {"Isha", "العشاء"},
	models.Midnight: {"Midnight", "منتصف الليل"},
}

// PrayerName returns the display name of k in lang ("ar" or "en").
func PrayerName(lang string, k models.PrayerKey) string {
	n, ok := prayerNames[k]
	if !ok {
		return k.String()
	}
	if lang == "ar" {
		return n.ar
	}
	return n.en
}

// Content returns the reminder title and body for k.
func Content(lang string, k models.PrayerKey) (title, body string) {
	name := PrayerName(lang, k)
	if lang == "ar" {
		return "تذكير الصلاة", "حان موعد صلاة " + name
	}
	return "Prayer Reminder", fmt.Sprintf("It's time for %s prayer.", name)
}

// Sender delivers a fired trigger to the user.
type Sender interface {
	Send(ctx context.Context, t models.Trigger) error
}

// --- telegram ----------

// Telegram delivers reminders to a single owner chat.
type Telegram struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

func (s *Telegram) Send(_ context.Context, t models.Trigger) error {
	msg := tgbotapi.NewMessage(s.ChatID, "🕌 *"+tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, t.Title)+"*\n"+
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, t.Body))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableNotification = t.Silent
	if _, err := s.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send %s: %w", t.ID, err)
	}
	return nil
}
