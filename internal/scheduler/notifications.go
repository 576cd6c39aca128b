package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/messages"
	"prayer-reminder/internal/models"
	"prayer-reminder/internal/settings"
	"prayer-reminder/internal/timetable"
)

const (
	// ChannelSuffix marks channels created after the v2 migration.
	ChannelSuffix = "_v2"

	ChannelSound  = "prayer_sound" + ChannelSuffix
	ChannelSilent = "prayer_silent" + ChannelSuffix
	LegacyChannel = "prayer-channel"

	// DefaultWindowDays is the rolling window: today and tomorrow.
	DefaultWindowDays = 2

	lastRefreshKey = "notifications.last_refresh"
)

// ChannelFor picks the delivery channel for the sound preference.
func ChannelFor(sound bool) string {
	if sound {
		return ChannelSound
	}
	return ChannelSilent
}

// TriggerService is the device notification service: it keeps timestamp
// triggers by id and fires them on its own.
type TriggerService interface {
	CreateTrigger(ctx context.Context, t models.Trigger) error
	CancelTrigger(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
	ListTriggers(ctx context.Context) ([]models.TriggerInfo, error)
}

// KV is the durable flag store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// TableSource yields the current schedule table.
type TableSource interface {
	Table() *timetable.Table
}

// Scheduler keeps reminder triggers in step with the table and the user's
// settings.
//
// Creating a trigger is at most once per id: the id is derived from
// (date, prayer) and the live trigger list is read before every create.
// There is no atomicity across calls, so all mutations of one Scheduler run
// one at a time under mu. Busy only reports that work is in progress.
type Scheduler struct {
	triggers TriggerService
	kv       KV
	tables   TableSource
	clock    clockwork.Clock
	loc      *time.Location
	days     int

	mu   sync.Mutex
	busy atomic.Bool
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option     { return func(s *Scheduler) { s.clock = c } }
func WithLocation(loc *time.Location) Option { return func(s *Scheduler) { s.loc = loc } }

// WithWindowDays sets the rolling window length; values below one are ignored.
func WithWindowDays(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.days = n
		}
	}
}

func New(triggers TriggerService, kv KV, tables TableSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		triggers: triggers,
		kv:       kv,
		tables:   tables,
		clock:    clockwork.NewRealClock(),
		loc:      time.Local,
		days:     DefaultWindowDays,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Busy is true while an operation runs. It is meant for the UI (greying out
// a manual refresh) and does not stop a second caller from entering.
func (s *Scheduler) Busy() bool { return s.busy.Load() }

// WindowDays is the configured rolling window length.
func (s *Scheduler) WindowDays() int { return s.days }

func (s *Scheduler) lock() func() {
	s.mu.Lock()
	s.busy.Store(true)
	return func() {
		s.busy.Store(false)
		s.mu.Unlock()
	}
}

func (s *Scheduler) today() models.CalendarDate {
	return models.DateOf(s.clock.Now().In(s.loc))
}

// ---------- single trigger --------------------------------------------------

// ScheduleOne registers the reminder for key on rec's date. It returns the id
// and whether a trigger was created now. An id that is already live is
// returned unchanged. A disabled, missing or past prayer returns an empty id
// and no error.
func (s *Scheduler) ScheduleOne(ctx context.Context, key models.PrayerKey, rec models.DayRecord, snap settings.Snapshot) (string, bool, error) {
	defer s.lock()()

	live, err := s.liveIDs(ctx)
	if err != nil {
		return "", false, err
	}
	return s.scheduleLocked(ctx, key, rec, snap, live)
}

func (s *Scheduler) scheduleLocked(ctx context.Context, key models.PrayerKey, rec models.DayRecord, snap settings.Snapshot, live map[string]struct{}) (string, bool, error) {
	id := models.NotificationID(rec.Date, key)
	if _, ok := live[id]; ok {
		return id, false, nil
	}
	if !snap.Enabled[key] {
		return "", false, nil
	}
	fireAt, ok := rec.At(key, s.loc)
	if !ok {
		return "", false, nil
	}
	if !fireAt.After(s.clock.Now()) {
		log.Debug().Str("id", id).Time("fire_at", fireAt).Msg("prayer time already passed, not scheduled")
		return "", false, nil
	}

	title, body := messages.Content(snap.Language, key)
	t := models.Trigger{
		ID:        id,
		ChannelID: ChannelFor(snap.Sound),
		FireAt:    fireAt,
		Title:     title,
		Body:      body,
		Silent:    !snap.Sound,
	}
	if err := s.triggers.CreateTrigger(ctx, t); err != nil {
		return "", false, &OSSchedulingError{Op: "create", ID: id, Err: err}
	}
	live[id] = struct{}{}
	log.Info().Str("id", id).Str("prayer", key.String()).Time("fire_at", fireAt).Str("channel", t.ChannelID).Msg("reminder scheduled")
	return id, true, nil
}

func (s *Scheduler) liveIDs(ctx context.Context) (map[string]struct{}, error) {
	list, err := s.triggers.ListTriggers(ctx)
	if err != nil {
		return nil, &OSSchedulingError{Op: "list", Err: err}
	}
	live := make(map[string]struct{}, len(list))
	for _, t := range list {
		live[t.ID] = struct{}{}
	}
	return live, nil
}

// ---------- windows ---------------------------------------------------------

// ScheduleRollingWindow schedules every enabled prayer of today+i for i in
// [0, days). Days missing from the table are skipped. Item failures do not
// stop the batch; the ids created are returned with the joined errors.
func (s *Scheduler) ScheduleRollingWindow(ctx context.Context, snap settings.Snapshot, days int) ([]string, error) {
	defer s.lock()()
	return s.scheduleDaysLocked(ctx, snap, 0, days, nil)
}

// SetupDailyRefresh schedules the day after tomorrow, so today and tomorrow
// stay covered even when the bot is not touched for a day. Safe to call on
// every start and resume.
func (s *Scheduler) SetupDailyRefresh(ctx context.Context, snap settings.Snapshot) ([]string, error) {
	defer s.lock()()

	ids, err := s.scheduleDaysLocked(ctx, snap, s.days, 1, nil)
	if err != nil {
		return ids, err
	}
	if err := s.kv.Set(ctx, lastRefreshKey, s.today().Compact()); err != nil {
		log.Warn().Err(err).Msg("could not record daily refresh")
	}
	return ids, nil
}

// LastRefresh returns the YYYYMMDD of the last successful daily refresh.
func (s *Scheduler) LastRefresh(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, lastRefreshKey)
	return v, err
}

// scheduleDaysLocked schedules days [today+from, today+from+n). When only is
// non-nil, only those prayers are considered.
func (s *Scheduler) scheduleDaysLocked(ctx context.Context, snap settings.Snapshot, from, n int, only []models.PrayerKey) ([]string, error) {
	tbl := s.tables.Table()
	if tbl == nil {
		return nil, &timetable.NoScheduleDataError{Location: snap.Location}
	}
	if _, err := tbl.Records(snap.Location); err != nil {
		return nil, err
	}
	live, err := s.liveIDs(ctx)
	if err != nil {
		return nil, err
	}

	keys := only
	if keys == nil {
		keys = models.AllPrayers
	}

	today := s.today()
	var (
		created []string
		errs    []error
	)
	for i := from; i < from+n; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		date := today.AddDays(i)
		rec, ok := tbl.Find(snap.Location, date)
		if !ok {
			log.Warn().Str("location", snap.Location).Str("date", date.String()).Msg("no table row for day, skipping")
			continue
		}
		for _, k := range keys {
			if !snap.Enabled[k] {
				continue
			}
			id, ok, err := s.scheduleLocked(ctx, k, rec, snap, live)
			if err != nil {
				log.Error().Err(err).Str("prayer", k.String()).Str("date", date.String()).Msg("schedule reminder failed")
				errs = append(errs, err)
				continue
			}
			if ok {
				created = append(created, id)
			}
		}
	}
	return created, errors.Join(errs...)
}

// ---------- cancel ----------------------------------------------------------

func (s *Scheduler) CancelOne(ctx context.Context, id string) error {
	defer s.lock()()
	return s.cancelLocked(ctx, id)
}

// CancelMany cancels ids, or every outstanding trigger when ids is empty.
// All ids are attempted; failures are joined.
func (s *Scheduler) CancelMany(ctx context.Context, ids ...string) error {
	defer s.lock()()
	return s.cancelManyLocked(ctx, ids)
}

func (s *Scheduler) cancelLocked(ctx context.Context, id string) error {
	if err := s.triggers.CancelTrigger(ctx, id); err != nil {
		return &OSSchedulingError{Op: "cancel", ID: id, Err: err}
	}
	log.Info().Str("id", id).Msg("reminder cancelled")
	return nil
}

func (s *Scheduler) cancelManyLocked(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		if err := s.triggers.CancelAll(ctx); err != nil {
			return &OSSchedulingError{Op: "cancel_all", Err: err}
		}
		log.Info().Msg("all reminders cancelled")
		return nil
	}
	var errs []error
	for _, id := range ids {
		if err := s.cancelLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---------- settings changes ------------------------------------------------

// ApplySettingsChange brings the triggers in line with c.New. A new location
// resets everything; a new channel or language rebuilds the covered days; a
// toggled prayer only touches that prayer's ids.
func (s *Scheduler) ApplySettingsChange(ctx context.Context, c settings.Change) error {
	defer s.lock()()

	horizon := s.days + 1
	switch {
	case c.LocationChanged():
		if err := s.cancelManyLocked(ctx, nil); err != nil {
			return err
		}
		_, err := s.scheduleDaysLocked(ctx, c.New, 0, horizon, nil)
		return err

	case c.Old.Sound != c.New.Sound || c.Old.Language != c.New.Language:
		if err := s.cancelHorizonLocked(ctx, horizon, models.AllPrayers, true); err != nil {
			return err
		}
		_, err := s.scheduleDaysLocked(ctx, c.New, 0, horizon, nil)
		return err
	}

	var enable, disable []models.PrayerKey
	for _, k := range c.ToggledPrayers() {
		if c.New.Enabled[k] {
			enable = append(enable, k)
		} else {
			disable = append(disable, k)
		}
	}
	var errs []error
	if len(disable) > 0 {
		errs = append(errs, s.cancelHorizonLocked(ctx, horizon, disable, false))
	}
	if len(enable) > 0 {
		_, err := s.scheduleDaysLocked(ctx, c.New, 0, horizon, enable)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// cancelHorizonLocked cancels the live ids of keys for today..today+n-1.
// With keepDue, a trigger whose time has come is left for the dispatcher:
// once cancelled it could not be registered again.
func (s *Scheduler) cancelHorizonLocked(ctx context.Context, n int, keys []models.PrayerKey, keepDue bool) error {
	list, err := s.triggers.ListTriggers(ctx)
	if err != nil {
		return &OSSchedulingError{Op: "list", Err: err}
	}
	now := s.clock.Now()
	live := make(map[string]models.TriggerInfo, len(list))
	for _, t := range list {
		live[t.ID] = t
	}

	today := s.today()
	var ids []string
	for i := 0; i < n; i++ {
		for _, k := range keys {
			id := models.NotificationID(today.AddDays(i), k)
			t, ok := live[id]
			if !ok {
				continue
			}
			if keepDue && !t.FireAt.After(now) {
				log.Debug().Str("id", id).Msg("reminder due, left for delivery")
				continue
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.cancelManyLocked(ctx, ids)
}

// IsCurrentChannel reports whether a trigger channel belongs to the v2 set.
func IsCurrentChannel(channelID string) bool {
	return strings.HasSuffix(channelID, ChannelSuffix)
}
