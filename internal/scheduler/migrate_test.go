package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prayer-reminder/internal/models"
)

func TestMigrateToChannelV2(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, june(1, 2), dawn)
	snap := snapshot(models.Fajr, models.Dhuhr)

	// an old reminder on the legacy channel and one already on v2
	h.trig.add("prayer_20250601_fajr", LegacyChannel)
	h.trig.add("prayer_20250601_dhuhr", ChannelSound)

	migrated, err := h.s.MigrateToChannelV2(ctx, snap)
	require.NoError(t, err)
	assert.True(t, migrated)

	assert.Equal(t, []string{"prayer_20250601_fajr"}, h.trig.cancels)
	assert.Equal(t, []string{
		"prayer_20250601_dhuhr", "prayer_20250601_fajr",
		"prayer_20250602_dhuhr", "prayer_20250602_fajr",
	}, h.trig.ids())
	for _, id := range h.trig.ids() {
		assert.True(t, IsCurrentChannel(h.trig.live[id].ChannelID), id)
	}
	// the v2 trigger was left alone
	assert.NotContains(t, h.trig.creates, "prayer_20250601_dhuhr")

	v, ok, _ := h.kv.Get(ctx, MigrationFlagKey)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestMigrateToChannelV2_RunsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, june(1, 2), dawn)
	require.NoError(t, h.kv.Set(ctx, MigrationFlagKey, "true"))
	h.trig.add("prayer_20250601_fajr", LegacyChannel)

	migrated, err := h.s.MigrateToChannelV2(ctx, snapshot(models.Fajr))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, h.trig.cancels)
	assert.Zero(t, h.trig.createCount())
}

func TestMigrateToChannelV2_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, june(1, 2), dawn)
	snap := snapshot(models.Fajr)
	h.trig.add("prayer_20250601_fajr", LegacyChannel)
	h.trig.add("prayer_20250602_fajr", LegacyChannel)
	h.trig.failCancel = map[string]error{"prayer_20250602_fajr": errors.New("interrupted")}

	_, err := h.s.MigrateToChannelV2(ctx, snap)
	var mErr *MigrationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "cancel", mErr.Stage)
	_, ok, _ := h.kv.Get(ctx, MigrationFlagKey)
	assert.False(t, ok, "flag must stay unset")

	// next start: the remaining stale trigger is cancelled and the window filled
	h.trig.failCancel = nil
	migrated, err := h.s.MigrateToChannelV2(ctx, snap)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, []string{"prayer_20250601_fajr", "prayer_20250602_fajr"}, h.trig.ids())
	for _, id := range h.trig.ids() {
		assert.Equal(t, ChannelSound, h.trig.live[id].ChannelID, id)
	}
}

func TestMigrateToChannelV2_FlagWriteFailure(t *testing.T) {
	h := newHarness(t, june(1), dawn)
	h.kv.setErr = errors.New("read-only")

	_, err := h.s.MigrateToChannelV2(context.Background(), snapshot(models.Fajr))
	var mErr *MigrationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "set_flag", mErr.Stage)
}
