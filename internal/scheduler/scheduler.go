package scheduler

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Jobs are the periodic tasks of the running bot. Nil funcs are not
// registered.
type Jobs struct {
	// Rollover runs shortly after local midnight: new day resolution and the
	// daily refresh of day+2.
	Rollover func()
	// Reload re-reads the schedule table every ReloadEvery.
	Reload      func()
	ReloadEvery time.Duration
	// Dispatch delivers due triggers at the start of every minute.
	Dispatch func()
}

const (
	// on the minute: table times have no seconds
	dispatchCron = "* * * * *"
	rolloverAt   = 30 // seconds past midnight
)

// Start registers jobs on a new gocron scheduler and starts it.
func Start(jobs Jobs, loc *time.Location, clock clockwork.Clock) (gocron.Scheduler, error) {
	opts := []gocron.SchedulerOption{gocron.WithLocation(loc)}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	if jobs.Rollover != nil {
		_, err = s.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, rolloverAt))),
			gocron.NewTask(jobs.Rollover),
			gocron.WithName("rollover"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, errors.Join(err, s.Shutdown())
		}
	}

	if jobs.Reload != nil && jobs.ReloadEvery > 0 {
		_, err = s.NewJob(
			gocron.DurationJob(jobs.ReloadEvery),
			gocron.NewTask(jobs.Reload),
			gocron.WithName("table-reload"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, errors.Join(err, s.Shutdown())
		}
	}

	if jobs.Dispatch != nil {
		_, err = s.NewJob(
			gocron.CronJob(dispatchCron, false),
			gocron.NewTask(jobs.Dispatch),
			gocron.WithName("dispatch"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return nil, errors.Join(err, s.Shutdown())
		}
	}

	s.Start()
	log.Info().Int("jobs", len(s.Jobs())).Str("tz", loc.String()).Msg("job scheduler started")
	return s, nil
}
