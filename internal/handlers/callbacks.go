package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"prayer-reminder/internal/app"
	"prayer-reminder/internal/messages"
	"prayer-reminder/internal/models"
	"prayer-reminder/internal/settings"
)

const (
	cbTogglePrefix = "toggle:"
	cbSound        = "sound"
	cbDayPrefix    = "day:"
	cbDayToday     = cbDayPrefix + "today"
)

// prayerKeyboard has one button per prayer plus the sound switch.
func prayerKeyboard(snap settings.Snapshot) tgbotapi.InlineKeyboardMarkup {
	tx := textsFor(snap.Language)
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, k := range models.AllPrayers {
		bell := tx.off
		if snap.Enabled[k] {
			bell = tx.on
		}
		label := bell + " " + messages.PrayerName(snap.Language, k)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+k.String()))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	sound := "🔈"
	if snap.Sound {
		sound = "🔊"
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(sound, cbSound)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// dayKeyboard moves between table rows. It is nil when there is nowhere to go.
func dayKeyboard(snap settings.Snapshot, v app.DayView) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if v.Page.HasPrev {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("◀ "+v.Page.Prev.String(), cbDayPrefix+v.Page.Prev.Compact()))
	}
	if !v.IsToday {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(textsFor(snap.Language).todayButton, cbDayToday))
	}
	if v.Page.HasNext {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(v.Page.Next.String()+" ▶", cbDayPrefix+v.Page.Next.Compact()))
	}
	if len(row) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

// ------------- callbacks ------------------
func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if strings.HasPrefix(cq.Data, cbDayPrefix) {
		h.handleDayCallback(cq)
		return
	}

	var fn func(settings.Snapshot) settings.Snapshot
	switch {
	case cq.Data == cbSound:
		fn = toggleSound
	case strings.HasPrefix(cq.Data, cbTogglePrefix):
		k, err := models.ParsePrayerKey(strings.TrimPrefix(cq.Data, cbTogglePrefix))
		if err != nil {
			_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))
			return
		}
		fn = togglePrayer(k)
	default:
		_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	if _, err := h.App.Settings.Update(ctx, fn); err != nil {
		_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, err.Error()))
		return
	}
	snap := h.App.Settings.Current()
	_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, textsFor(snap.Language).saved))
	_, _ = h.Bot.Request(tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID, prayerKeyboard(snap)))
}

func (h *Handler) handleDayCallback(cq *tgbotapi.CallbackQuery) {
	_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))

	from := h.App.TodayDate()
	if cq.Data != cbDayToday {
		d, err := models.ParseCompactDate(strings.TrimPrefix(cq.Data, cbDayPrefix))
		if err != nil {
			return
		}
		from = d
	}
	snap := h.App.Settings.Current()
	v, err := h.App.Browse(from, 0)
	if err != nil {
		h.reply(textsFor(snap.Language).noData, nil)
		return
	}
	edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, formatDay(snap, v))
	edit.ReplyMarkup = dayKeyboard(snap, v)
	_, _ = h.Bot.Request(edit)
}
