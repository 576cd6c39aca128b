// Package dispatch fires due triggers. It plays the part of the device's
// notification service for a server process: triggers live in storage and
// are delivered once their time has come.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/messages"
	"prayer-reminder/internal/models"
)

// Store holds registered triggers.
type Store interface {
	DueTriggers(ctx context.Context, now time.Time) ([]models.Trigger, error)
	MarkFired(ctx context.Context, id string) error
}

// MaxLateness bounds how late a reminder is still worth sending. Older due
// triggers are dropped unsent.
const MaxLateness = time.Hour

type Dispatcher struct {
	store  Store
	sender messages.Sender
	clock  clockwork.Clock
}

func New(store Store, sender messages.Sender, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{store: store, sender: sender, clock: clock}
}

// Tick delivers every due trigger. A trigger whose delivery fails stays
// registered and is tried again on the next tick.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.clock.Now()
	due, err := d.store.DueTriggers(ctx, now)
	if err != nil {
		return 0, err
	}

	var (
		sent int
		errs []error
	)
	for _, t := range due {
		if now.Sub(t.FireAt) > MaxLateness {
			log.Warn().Str("id", t.ID).Time("fire_at", t.FireAt).Msg("reminder too late, dropped")
			if err := d.store.MarkFired(ctx, t.ID); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := d.sender.Send(ctx, t); err != nil {
			log.Error().Err(err).Str("id", t.ID).Msg("reminder delivery failed")
			errs = append(errs, err)
			continue
		}
		if err := d.store.MarkFired(ctx, t.ID); err != nil {
			log.Error().Err(err).Str("id", t.ID).Msg("could not remove delivered trigger")
			errs = append(errs, err)
			continue
		}
		sent++
		log.Info().Str("id", t.ID).Str("channel", t.ChannelID).Msg("reminder delivered")
	}
	return sent, errors.Join(errs...)
}
