package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"prayer-reminder/internal/app"
	"prayer-reminder/internal/config"
	"prayer-reminder/internal/dispatch"
	"prayer-reminder/internal/handlers"
	"prayer-reminder/internal/messages"
	"prayer-reminder/internal/models"
	"prayer-reminder/internal/scheduler"
	"prayer-reminder/internal/settings"
	"prayer-reminder/internal/storage"
	"prayer-reminder/internal/timetable"
	"prayer-reminder/internal/upcoming"
	"prayer-reminder/internal/utils"
)

func main() {
	root := &cobra.Command{
		Use:           "prayer-reminder",
		Short:         "Prayer time reminders over Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), todayCmd(), scheduleCmd(), migrateCmd(), triggersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exit")
		stop()
		os.Exit(1)
	}
}

// ---------- wiring ----------------------------------------------------------

type deps struct {
	cfg   config.Config
	db    *storage.DB
	clock clockwork.Clock
	app   *app.App
}

func (d *deps) close() {
	d.app.Shutdown()
	if err := d.db.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := utils.SetupLogger(nil, cfg.LogLevel, cfg.LogPretty); err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	db, err := storage.New(cfg.DBPath, storage.WithClock(clock))
	if err != nil {
		return nil, err
	}

	// a missing table is not fatal: every view shows "no data" until a
	// later reload succeeds
	tables := timetable.NewProvider(cfg.TablePath)
	_ = tables.Reload()

	store := settings.NewStore(db)
	if _, err := store.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	sched := scheduler.New(db, db, tables,
		scheduler.WithClock(clock),
		scheduler.WithLocation(cfg.Location),
		scheduler.WithWindowDays(cfg.RollingDays),
	)
	machine := upcoming.New(
		upcoming.WithClock(clock),
		upcoming.WithLocation(cfg.Location),
		upcoming.WithSlack(cfg.WakeSlack),
		upcoming.WithOnChange(func(state models.UpcomingState, next models.PrayerKey) {
			ev := log.Debug().Stringer("state", state)
			if state == models.StateScanning {
				ev = ev.Stringer("next", next)
			}
			ev.Msg("upcoming changed")
		}),
	)

	return &deps{
		cfg:   cfg,
		db:    db,
		clock: clock,
		app:   app.New(tables, store, sched, machine, clock, cfg.Location),
	}, nil
}

// ---------- run -------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot, the reminder dispatcher and the daily jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			if err := d.cfg.RequireBot(); err != nil {
				return err
			}

			bot, err := tgbotapi.NewBotAPI(d.cfg.TelegramToken)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			log.Info().Str("bot", bot.Self.UserName).Msg("authorized")

			a := d.app
			if err := a.Startup(ctx); err != nil {
				log.Warn().Err(err).Msg("startup incomplete")
			}

			dispatcher := dispatch.New(d.db, &messages.Telegram{Bot: bot, ChatID: d.cfg.OwnerChatID}, d.clock)
			jobs, err := scheduler.Start(scheduler.Jobs{
				Rollover: func() {
					if err := a.Rollover(ctx); err != nil {
						log.Error().Err(err).Msg("midnight rollover")
					}
				},
				Reload:      func() { _ = a.Tables.Reload() },
				ReloadEvery: d.cfg.ReloadEvery,
				Dispatch: func() {
					if _, err := dispatcher.Tick(ctx); err != nil {
						log.Error().Err(err).Msg("dispatch tick")
					}
				},
			}, d.cfg.Location, d.clock)
			if err != nil {
				return err
			}
			defer func() {
				if err := jobs.Shutdown(); err != nil {
					log.Warn().Err(err).Msg("job scheduler shutdown")
				}
			}()

			h := handlers.NewHandler(bot, a, d.cfg.OwnerChatID)
			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			updates := bot.GetUpdatesChan(u)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return h.Listen(gctx, updates) })
			g.Go(func() error { return a.Watch(gctx) })
			g.Go(func() error {
				<-gctx.Done()
				bot.StopReceivingUpdates()
				return nil
			})

			err = g.Wait()
			log.Info().Msg("shutting down")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// ---------- one-shot commands -----------------------------------------------

func todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print today's prayer times for the selected location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer d.close()

			t, err := d.app.ResolveToday()
			if err != nil {
				return err
			}
			lang := d.app.Settings.Current().Language
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", t.Location, t.Record.Date)
			if t.Resolved.IsFallbackLast {
				fmt.Fprintf(out, "(table ends before %s)\n", t.Date)
			}
			for _, k := range models.AllPrayers {
				ct, ok := t.Record.Times[k]
				if !ok {
					continue
				}
				mark := " "
				if t.State == models.StateScanning && t.Next == k {
					mark = ">"
				}
				fmt.Fprintf(out, "%s %s %s\n", mark, ct, messages.PrayerName(lang, k))
			}
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Fill the rolling reminder window and pre-schedule the refresh day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			s := d.app.Scheduler
			snap := d.app.Settings.Current()
			created, werr := s.ScheduleRollingWindow(ctx, snap, s.WindowDays())
			more, rerr := s.SetupDailyRefresh(ctx, snap)
			for _, id := range append(created, more...) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return errors.Join(werr, rerr)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move pending reminders to the v2 channels (runs once)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			migrated, err := d.app.Scheduler.MigrateToChannelV2(ctx, d.app.Settings.Current())
			if err != nil {
				return err
			}
			if migrated {
				fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "already migrated")
			}
			return nil
		},
	}
}

func triggersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triggers",
		Short: "List registered reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			pending, err := d.db.PendingTriggers(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHANNEL\tFIRES AT")
			for _, t := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.ChannelID, t.FireAt.In(d.cfg.Location).Format(time.DateTime))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			last, err := d.app.Scheduler.LastRefresh(ctx)
			if err != nil {
				return err
			}
			if last != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "last daily refresh: %s\n", last)
			}
			return nil
		},
	}
}
