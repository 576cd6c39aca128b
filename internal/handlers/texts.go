package handlers

import (
	"fmt"
	"strings"

	"prayer-reminder/internal/app"
	"prayer-reminder/internal/messages"
	"prayer-reminder/internal/models"
	"prayer-reminder/internal/settings"
)

type texts struct {
	help        string
	noData      string
	fallback    string // %s: date actually shown
	next        string // %s name, %s time
	allEnded    string
	saved       string
	soundOn     string
	soundOff    string
	unknownLoc  string // %s: known ids
	unknownKey  string
	locationSet string // %s: id
	usageLoc    string
	usageToggle string
	usageDay    string
	busy        string
	format24h   string
	format12h   string
	todayButton string
	on, off     string
	am, pm      string
}

var uiTexts = map[string]texts{
	settings.LangEnglish: {
		help: "Commands:\n/today - today's times\n/next - next prayer\n/day [-1|+1|today|D/M/YYYY] - browse the table\n" +
			"/location <id> - change city\n/toggle <prayer> - reminder on/off\n/sound - sound on/off\n" +
			"/timeformat - 12h/24h\n/lang - العربية",
		noData:      "No prayer times are available for this location.",
		fallback:    "The table ends before today, showing %s.",
		next:        "Next: %s at %s",
		allEnded:    "All prayers for today have passed.",
		saved:       "Saved.",
		soundOn:     "Reminders will play a sound.",
		soundOff:    "Reminders will be silent.",
		unknownLoc:  "Unknown location. Available: %s",
		unknownKey:  "Unknown prayer. Use one of: " + keyList(),
		locationSet: "Location set to %s.",
		usageLoc:    "Usage: /location <id>",
		usageToggle: "Usage: /toggle <prayer>",
		usageDay:    "Usage: /day [-1|+1|today|D/M/YYYY]",
		busy:        "Reminders are being updated, try again in a moment.",
		format24h:   "Times are shown on a 24-hour clock.",
		format12h:   "Times are shown on a 12-hour clock.",
		todayButton: "Today",
		on:          "🔔",
		off:         "🔕",
		am:          "AM",
		pm:          "PM",
	},
	settings.LangArabic: {
		help: "الأوامر:\n/today - مواقيت اليوم\n/next - الصلاة القادمة\n/day [-1|+1|today|D/M/YYYY] - تصفح الجدول\n" +
			"/location <id> - تغيير المدينة\n/toggle <prayer> - تشغيل/إيقاف التذكير\n/sound - الصوت\n" +
			"/timeformat - 12/24 ساعة\n/lang - English",
		noData:      "لا تتوفر مواقيت لهذا الموقع.",
		fallback:    "ينتهي الجدول قبل اليوم، يتم عرض %s.",
		next:        "الصلاة القادمة: %s الساعة %s",
		allEnded:    "انتهت صلوات اليوم.",
		saved:       "تم الحفظ.",
		soundOn:     "ستصدر التذكيرات صوتاً.",
		soundOff:    "ستكون التذكيرات صامتة.",
		unknownLoc:  "موقع غير معروف. المتاح: %s",
		unknownKey:  "صلاة غير معروفة. استخدم: " + keyList(),
		locationSet: "تم تعيين الموقع إلى %s.",
		usageLoc:    "الاستخدام: /location <id>",
		usageToggle: "الاستخدام: /toggle <prayer>",
		usageDay:    "الاستخدام: /day [-1|+1|today|D/M/YYYY]",
		busy:        "يتم تحديث التذكيرات، حاول بعد قليل.",
		format24h:   "تعرض الأوقات بنظام 24 ساعة.",
		format12h:   "تعرض الأوقات بنظام 12 ساعة.",
		todayButton: "اليوم",
		on:          "🔔",
		off:         "🔕",
		am:          "ص",
		pm:          "م",
	},
}

func textsFor(lang string) texts {
	if t, ok := uiTexts[lang]; ok {
		return t
	}
	return uiTexts[settings.LangEnglish]
}

func keyList() string {
	names := make([]string, 0, len(models.AllPrayers))
	for _, k := range models.AllPrayers {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

func formatClock(snap settings.Snapshot, c models.ClockTime) string {
	if snap.TimeFormat == settings.TimeFormat12h {
		tx := textsFor(snap.Language)
		return c.Format12h(tx.am, tx.pm)
	}
	return c.String()
}

// writeTimes lists rec's prayers in order, marking next when marked is set.
func writeTimes(b *strings.Builder, snap settings.Snapshot, rec models.DayRecord, next models.PrayerKey, marked bool) {
	tx := textsFor(snap.Language)
	for _, k := range models.AllPrayers {
		ct, ok := rec.Times[k]
		if !ok {
			continue
		}
		marker := "  "
		if marked && next == k {
			marker = "▶ "
		}
		bell := tx.off
		if snap.Enabled[k] {
			bell = tx.on
		}
		fmt.Fprintf(b, "%s%s %s %s\n", marker, formatClock(snap, ct), bell, messages.PrayerName(snap.Language, k))
	}
}

// formatToday renders the day's table with the upcoming prayer marked.
func formatToday(snap settings.Snapshot, t app.Today) string {
	tx := textsFor(snap.Language)
	if t.Err != nil {
		return tx.noData
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s · %s\n", t.Location, t.Date)
	if t.Resolved.IsFallbackLast {
		fmt.Fprintf(&b, tx.fallback+"\n", t.Record.Date)
	}
	b.WriteString("\n")
	writeTimes(&b, snap, t.Record, t.Next, t.State == models.StateScanning)
	return strings.TrimRight(b.String(), "\n")
}

// formatDay renders a browsed row with its position in the table.
func formatDay(snap settings.Snapshot, v app.DayView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s · %s (%d/%d)\n\n", v.Location, v.Page.Record.Date, v.Page.Index+1, v.Page.Count)
	writeTimes(&b, snap, v.Page.Record, v.Next, v.IsToday && v.State == models.StateScanning)
	return strings.TrimRight(b.String(), "\n")
}

func formatNext(snap settings.Snapshot, t app.Today) string {
	tx := textsFor(snap.Language)
	switch {
	case t.Err != nil || t.State == models.StateIdle:
		return tx.noData
	case t.State == models.StateAllEnded:
		return tx.allEnded
	}
	return fmt.Sprintf(tx.next, messages.PrayerName(snap.Language, t.Next), formatClock(snap, t.Record.Times[t.Next]))
}
