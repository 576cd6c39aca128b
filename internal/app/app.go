// Package app ties the table, settings, reminder scheduler and upcoming
// indicator together and reacts to the events that move them: start,
// resume, midnight, settings changes and table refreshes.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/models"
	"prayer-reminder/internal/scheduler"
	"prayer-reminder/internal/settings"
	"prayer-reminder/internal/timetable"
	"prayer-reminder/internal/upcoming"
)

type App struct {
	Tables    *timetable.Provider
	Settings  *settings.Store
	Scheduler *scheduler.Scheduler
	Upcoming  *upcoming.Machine
	Clock     clockwork.Clock
	Loc       *time.Location

	changes   <-chan settings.Change
	refreshes <-chan uint64

	// resolveMu makes a resolution and its publication one step, so one
	// computed from a replaced table cannot land after a newer one.
	resolveMu sync.Mutex

	mu       sync.Mutex
	today    Today
	version  uint64
	resolved bool
}

// New subscribes to settings and table events right away so nothing
// published before Watch starts is lost.
func New(tables *timetable.Provider, store *settings.Store, sched *scheduler.Scheduler, machine *upcoming.Machine, clock clockwork.Clock, loc *time.Location) *App {
	return &App{
		Tables:    tables,
		Settings:  store,
		Scheduler: sched,
		Upcoming:  machine,
		Clock:     clock,
		Loc:       loc,
		changes:   store.Subscribe(),
		refreshes: tables.Subscribe(),
	}
}

// Today is what the bot shows for the current day.
type Today struct {
	Location string
	Date     models.CalendarDate
	Record   models.DayRecord
	Resolved models.ResolvedDayIndex
	State    models.UpcomingState
	Next     models.PrayerKey
	Err      error
}

func (a *App) now() time.Time { return a.Clock.Now().In(a.Loc) }

// Startup runs the one-time migration, fills the rolling window, pre-schedules
// day+2 and resolves today. Every step runs even if an earlier one failed.
func (a *App) Startup(ctx context.Context) error {
	snap := a.Settings.Current()
	var errs []error

	if migrated, err := a.Scheduler.MigrateToChannelV2(ctx, snap); err != nil {
		log.Error().Err(err).Msg("channel migration failed, will retry on next start")
		errs = append(errs, err)
	} else if migrated {
		log.Info().Msg("reminders moved to v2 channels")
	}

	errs = append(errs, a.ensureCoverage(ctx, snap))
	if _, err := a.ResolveToday(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Resume is the foreground path: coverage is topped up and the upcoming
// indicator recomputed. When the day and table are unchanged the indicator
// is only refreshed.
func (a *App) Resume(ctx context.Context) error {
	err := a.ensureCoverage(ctx, a.Settings.Current())
	if _, rerr := a.resolve(true); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

// Rollover runs after midnight.
func (a *App) Rollover(ctx context.Context) error {
	_, err := a.ResolveToday()
	snap := a.Settings.Current()
	if _, rerr := a.Scheduler.SetupDailyRefresh(ctx, snap); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return err
}

func (a *App) ensureCoverage(ctx context.Context, snap settings.Snapshot) error {
	var errs []error
	ids, err := a.Scheduler.ScheduleRollingWindow(ctx, snap, a.Scheduler.WindowDays())
	if err != nil {
		log.Error().Err(err).Msg("rolling window incomplete")
		errs = append(errs, err)
	}
	more, err := a.Scheduler.SetupDailyRefresh(ctx, snap)
	if err != nil {
		log.Error().Err(err).Msg("daily refresh failed")
		errs = append(errs, err)
	}
	log.Info().Int("created", len(ids)+len(more)).Str("location", snap.Location).Msg("reminder coverage checked")
	return errors.Join(errs...)
}

// ResolveToday picks the table row for the current date and re-arms the
// upcoming indicator for it.
func (a *App) ResolveToday() (Today, error) { return a.resolve(false) }

func (a *App) resolve(reuse bool) (Today, error) {
	a.resolveMu.Lock()
	defer a.resolveMu.Unlock()

	snap := a.Settings.Current()
	now := a.now()
	version := a.Tables.Version()
	t := Today{Location: snap.Location, Date: models.DateOf(now)}

	tbl := a.Tables.Table()
	if tbl == nil {
		t.Err = &timetable.NoScheduleDataError{Location: snap.Location}
	} else {
		t.Record, t.Resolved, t.Err = tbl.Resolve(snap.Location, t.Date)
	}

	a.mu.Lock()
	prev, prevVersion, had := a.today, a.version, a.resolved
	a.mu.Unlock()
	same := had && prev.Err == nil && prevVersion == version &&
		prev.Location == t.Location && prev.Record.Date == t.Record.Date

	switch {
	case t.Err != nil:
		a.Upcoming.Clear()
	case reuse && same:
		a.Upcoming.Refresh()
	default:
		if t.Resolved.IsFallbackLast {
			log.Warn().Str("location", snap.Location).Str("shown", t.Record.Date.String()).Msg("table ends before today, showing last day")
		}
		a.Upcoming.Set(t.Record)
	}
	t.State, t.Next = a.Upcoming.Current()

	a.mu.Lock()
	a.today, a.version, a.resolved = t, version, true
	a.mu.Unlock()
	return t, t.Err
}

// DayView is a table row picked while browsing.
type DayView struct {
	Location string
	Page     timetable.Page
	IsToday  bool
	State    models.UpcomingState
	Next     models.PrayerKey
}

// Browse shows the row step rows away from the one resolved for from. The
// upcoming prayer is only filled in for the row resolved for today.
func (a *App) Browse(from models.CalendarDate, step int) (DayView, error) {
	snap := a.Settings.Current()
	v := DayView{Location: snap.Location}
	tbl := a.Tables.Table()
	if tbl == nil {
		return v, &timetable.NoScheduleDataError{Location: snap.Location}
	}
	page, err := tbl.Step(snap.Location, from, step)
	if err != nil {
		return v, err
	}
	v.Page = page

	today, _, err := tbl.Resolve(snap.Location, a.TodayDate())
	if err == nil && today.Date == page.Record.Date {
		v.IsToday = true
		if cur := a.Today(); cur.Err == nil && cur.Record.Date == today.Date {
			v.State, v.Next = cur.State, cur.Next
		}
	}
	return v, nil
}

// TodayDate is the current calendar date in the app's zone.
func (a *App) TodayDate() models.CalendarDate { return models.DateOf(a.now()) }

// Today returns the last resolution with a fresh upcoming state.
func (a *App) Today() Today {
	a.mu.Lock()
	t := a.today
	a.mu.Unlock()
	t.State, t.Next = a.Upcoming.Current()
	return t
}

// Watch follows settings changes and table refreshes until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-a.changes:
			if err := a.Scheduler.ApplySettingsChange(ctx, c); err != nil {
				log.Error().Err(err).Msg("applying settings change")
			}
			if c.LocationChanged() {
				_, _ = a.ResolveToday()
			}

		case v := <-a.refreshes:
			log.Info().Uint64("version", v).Msg("table refreshed, resolving again")
			_, _ = a.ResolveToday()
			if err := a.ensureCoverage(ctx, a.Settings.Current()); err != nil {
				log.Error().Err(err).Msg("coverage after table refresh")
			}
		}
	}
}

// Shutdown stops the upcoming timer. Registered triggers stay in storage.
func (a *App) Shutdown() {
	a.Upcoming.Stop()
}
