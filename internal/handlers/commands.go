package handlers

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/models"
	"prayer-reminder/internal/settings"
)

func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		h.HandleStart(ctx)
	case "today":
		h.HandleToday()
	case "next":
		h.HandleNext()
	case "day":
		h.HandleDay(arg)
	case "location":
		h.HandleLocation(ctx, arg)
	case "toggle":
		h.HandleToggle(ctx, arg)
	case "sound":
		h.HandleSound(ctx)
	case "lang":
		h.HandleLanguage(ctx, arg)
	case "timeformat":
		h.HandleTimeFormat(ctx, arg)
	default:
		h.reply(textsFor(h.App.Settings.Current().Language).help, nil)
	}
}

// ---------------- /start --------------------
func (h *Handler) HandleStart(ctx context.Context) {
	// a refresh is already running; its result is what the user would get
	if h.App.Scheduler.Busy() {
		h.reply(textsFor(h.App.Settings.Current().Language).busy, nil)
		return
	}
	if err := h.App.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("resume")
	}
	snap := h.App.Settings.Current()
	h.reply(formatToday(snap, h.App.Today()), prayerKeyboard(snap))
}

// ---------------- /today /next ----------------
func (h *Handler) HandleToday() {
	t, _ := h.App.ResolveToday()
	snap := h.App.Settings.Current()
	h.reply(formatToday(snap, t), prayerKeyboard(snap))
}

func (h *Handler) HandleNext() {
	h.reply(formatNext(h.App.Settings.Current(), h.App.Today()), nil)
}

// HandleDay browses the table: no argument or "today" for today's row,
// "+N"/"-N" rows away from it, or an explicit D/M/YYYY date.
func (h *Handler) HandleDay(arg string) {
	snap := h.App.Settings.Current()
	tx := textsFor(snap.Language)

	from, step := h.App.TodayDate(), 0
	switch {
	case arg == "" || arg == "today":
	case strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-"):
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.reply(tx.usageDay, nil)
			return
		}
		step = n
	default:
		d, err := models.ParseCalendarDate(arg)
		if err != nil {
			h.reply(tx.usageDay, nil)
			return
		}
		from = d
	}

	v, err := h.App.Browse(from, step)
	if err != nil {
		h.reply(tx.noData, nil)
		return
	}
	if kb := dayKeyboard(snap, v); kb != nil {
		h.reply(formatDay(snap, v), kb)
		return
	}
	h.reply(formatDay(snap, v), nil)
}

// ---------------- settings ----------------
func (h *Handler) HandleLocation(ctx context.Context, id string) {
	tx := textsFor(h.App.Settings.Current().Language)
	if id == "" {
		h.reply(tx.usageLoc, nil)
		return
	}
	var known []string
	if tbl := h.App.Tables.Table(); tbl != nil {
		known = tbl.Locations()
	}
	if !slices.Contains(known, id) {
		h.reply(fmt.Sprintf(tx.unknownLoc, strings.Join(known, ", ")), nil)
		return
	}
	if !h.update(ctx, func(s settings.Snapshot) settings.Snapshot { return s.WithLocation(id) }) {
		return
	}
	h.reply(fmt.Sprintf(tx.locationSet, id), nil)
}

func (h *Handler) HandleToggle(ctx context.Context, arg string) {
	tx := textsFor(h.App.Settings.Current().Language)
	if arg == "" {
		h.reply(tx.usageToggle, nil)
		return
	}
	k, err := models.ParsePrayerKey(arg)
	if err != nil {
		h.reply(tx.unknownKey, nil)
		return
	}
	if !h.update(ctx, togglePrayer(k)) {
		return
	}
	snap := h.App.Settings.Current()
	h.reply(textsFor(snap.Language).saved, prayerKeyboard(snap))
}

func (h *Handler) HandleSound(ctx context.Context) {
	if !h.update(ctx, toggleSound) {
		return
	}
	snap := h.App.Settings.Current()
	tx := textsFor(snap.Language)
	if snap.Sound {
		h.reply(tx.soundOn, nil)
	} else {
		h.reply(tx.soundOff, nil)
	}
}

// HandleLanguage switches to lang, or flips between Arabic and English.
func (h *Handler) HandleLanguage(ctx context.Context, lang string) {
	if lang == "" {
		lang = otherLanguage(h.App.Settings.Current().Language)
	}
	if !h.update(ctx, func(s settings.Snapshot) settings.Snapshot { return s.WithLanguage(lang) }) {
		return
	}
	h.reply(textsFor(lang).help, nil)
}

// HandleTimeFormat sets 12h or 24h, or flips between them.
func (h *Handler) HandleTimeFormat(ctx context.Context, format string) {
	if format == "" {
		format = settings.TimeFormat12h
		if h.App.Settings.Current().TimeFormat == settings.TimeFormat12h {
			format = settings.TimeFormat24h
		}
	}
	if !h.update(ctx, func(s settings.Snapshot) settings.Snapshot { return s.WithTimeFormat(format) }) {
		return
	}
	tx := textsFor(h.App.Settings.Current().Language)
	if format == settings.TimeFormat12h {
		h.reply(tx.format12h, nil)
	} else {
		h.reply(tx.format24h, nil)
	}
}

func (h *Handler) update(ctx context.Context, fn func(settings.Snapshot) settings.Snapshot) bool {
	if _, err := h.App.Settings.Update(ctx, fn); err != nil {
		log.Error().Err(err).Msg("settings update")
		h.reply(err.Error(), nil)
		return false
	}
	return true
}

func togglePrayer(k models.PrayerKey) func(settings.Snapshot) settings.Snapshot {
	return func(s settings.Snapshot) settings.Snapshot { return s.WithPrayer(k, !s.Enabled[k]) }
}

func toggleSound(s settings.Snapshot) settings.Snapshot { return s.WithSound(!s.Sound) }

func otherLanguage(lang string) string {
	if lang == settings.LangArabic {
		return settings.LangEnglish
	}
	return settings.LangArabic
}
