package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrayerKey is one of the fixed daily time markers. The numeric order is the
// chronological order within a day.
type PrayerKey int

const (
	Imsak PrayerKey = iota
	Fajr
	Shuruq
	Dhuhr
	Asr
	Maghrib
	Isha
	Midnight
)

var prayerNames = [...]string{"imsak", "fajr", "shuruq", "dhuhr", "asr", "maghrib", "isha", "midnight"}

// AllPrayers lists every key in chronological order.
var AllPrayers = []PrayerKey{Imsak, Fajr, Shuruq, Dhuhr, Asr, Maghrib, Isha, Midnight}

func (k PrayerKey) String() string {
	if k < Imsak || k > Midnight {
		return "unknown"
	}
	return prayerNames[k]
}

func (k PrayerKey) Valid() bool { return k >= Imsak && k <= Midnight }

func (k PrayerKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid prayer key %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *PrayerKey) UnmarshalText(b []byte) error {
	v, err := ParsePrayerKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func ParsePrayerKey(s string) (PrayerKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range prayerNames {
		if n == s {
			return PrayerKey(i), nil
		}
	}
	return 0, fmt.Errorf("unknown prayer %q", s)
}

// ---------- calendar date ---------------------------------------------------

// CalendarDate is a day/month/year triple without a time zone.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseCalendarDate parses "D/M/YYYY"; day and month may be zero padded or not.
func ParseCalendarDate(s string) (CalendarDate, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return CalendarDate{}, fmt.Errorf("date %q: want D/M/YYYY", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return CalendarDate{}, fmt.Errorf("date %q: %w", s, err)
		}
		nums[i] = n
	}
	d := CalendarDate{Year: nums[2], Month: time.Month(nums[1]), Day: nums[0]}
	// time.Date normalises 31/2 into March; reject anything that moved
	if DateOf(d.midnight(time.UTC)) != d {
		return CalendarDate{}, fmt.Errorf("date %q: out of range", s)
	}
	return d, nil
}

// ParseCompactDate parses the YYYYMMDD form written by Compact.
func ParseCompactDate(s string) (CalendarDate, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("date %q: want YYYYMMDD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%d/%d/%d", d.Day, int(d.Month), d.Year)
}

// Compact renders YYYYMMDD.
func (d CalendarDate) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.midnight(time.UTC).AddDate(0, 0, n))
}

// DaysBetween returns the signed number of days from d to other.
func (d CalendarDate) DaysBetween(other CalendarDate) int {
	return int(other.midnight(time.UTC).Sub(d.midnight(time.UTC)).Hours() / 24)
}

// Compare returns -1, 0 or 1.
func (d CalendarDate) Compare(other CalendarDate) int {
	switch n := d.DaysBetween(other); {
	case n > 0:
		return -1
	case n < 0:
		return 1
	}
	return 0
}

func (d CalendarDate) Before(other CalendarDate) bool { return d.Compare(other) < 0 }
func (d CalendarDate) After(other CalendarDate) bool  { return d.Compare(other) > 0 }

// On places a wall clock time on this day in loc.
func (d CalendarDate) On(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// ---------- clock time ------------------------------------------------------

// ClockTime is a local wall clock HH:MM.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return ClockTime{}, fmt.Errorf("time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return ClockTime{}, fmt.Errorf("time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return ClockTime{}, fmt.Errorf("time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("time %q: out of range", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Format12h renders the time on a 12-hour clock, "5:07 AM" with am/pm as
// the suffixes.
func (c ClockTime) Format12h(am, pm string) string {
	h, suffix := c.Hour%12, am
	if h == 0 {
		h = 12
	}
	if c.Hour >= 12 {
		suffix = pm
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute, suffix)
}

// ---------- day records -----------------------------------------------------

// DayRecord is one calendar day of prayer times for a location. Records are
// shared between readers and must not be modified once loaded.
type DayRecord struct {
	Date  CalendarDate
	Times map[PrayerKey]ClockTime
}

// At returns the absolute instant of key on the record's date.
func (r DayRecord) At(key PrayerKey, loc *time.Location) (time.Time, bool) {
	c, ok := r.Times[key]
	if !ok {
		return time.Time{}, false
	}
	return r.Date.On(c, loc), true
}

// EnabledPrayerSet says which prayers the user wants reminders for.
type EnabledPrayerSet map[PrayerKey]bool

func (s EnabledPrayerSet) Clone() EnabledPrayerSet {
	out := make(EnabledPrayerSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ResolvedDayIndex is the Time Resolver result. IsFallbackLast means today is
// past the end of the table and the last known day is shown instead.
type ResolvedDayIndex struct {
	Index          int
	IsFallbackLast bool
}

// ---------- notifications ---------------------------------------------------

// NotificationID is the persistent trigger id for (date, key). The format is
// stored by the trigger service and must not change between releases.
func NotificationID(date CalendarDate, key PrayerKey) string {
	return "prayer_" + date.Compact() + "_" + key.String()
}

// Trigger is one timestamp reminder registered with the trigger service.
type Trigger struct {
	ID        string    `db:"id"`
	ChannelID string    `db:"channel_id"`
	FireAt    time.Time `db:"fire_at"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Silent    bool      `db:"silent"`
}

// TriggerInfo is what the trigger service reports for a live trigger.
type TriggerInfo struct {
	ID        string    `db:"id"         json:"id"`
	ChannelID string    `db:"channel_id" json:"channel_id"`
	FireAt    time.Time `db:"fire_at"    json:"fire_at"`
}
