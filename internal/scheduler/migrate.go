package scheduler

import (
	"context"

	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/settings"
)

// MigrationFlagKey is set once the v2 channel migration has completed.
const MigrationFlagKey = "notifications.channel_v2_migrated"

// MigrateToChannelV2 moves reminders off pre-v2 channels, once. Stale
// triggers are cancelled, the rolling window is scheduled again on the
// current channel, and only then is the flag written. A run that fails part
// way leaves the flag unset; running it again cancels whatever stale
// triggers remain and fills the window, so a retry converges.
func (s *Scheduler) MigrateToChannelV2(ctx context.Context, snap settings.Snapshot) (bool, error) {
	defer s.lock()()

	done, _, err := s.kv.Get(ctx, MigrationFlagKey)
	if err != nil {
		return false, &MigrationError{Stage: "read_flag", Err: err}
	}
	if done == "true" {
		return false, nil
	}

	list, err := s.triggers.ListTriggers(ctx)
	if err != nil {
		return false, &MigrationError{Stage: "list", Err: err}
	}
	var stale []string
	for _, t := range list {
		if !IsCurrentChannel(t.ChannelID) {
			stale = append(stale, t.ID)
		}
	}
	log.Info().Int("triggers", len(list)).Int("stale", len(stale)).Msg("channel migration started")

	if len(stale) > 0 {
		if err := s.cancelManyLocked(ctx, stale); err != nil {
			return false, &MigrationError{Stage: "cancel", Err: err}
		}
	}
	if _, err := s.scheduleDaysLocked(ctx, snap, 0, s.days, nil); err != nil {
		return false, &MigrationError{Stage: "reschedule", Err: err}
	}
	if err := s.kv.Set(ctx, MigrationFlagKey, "true"); err != nil {
		return false, &MigrationError{Stage: "set_flag", Err: err}
	}
	log.Info().Int("cancelled", len(stale)).Msg("channel migration finished")
	return true, nil
}
