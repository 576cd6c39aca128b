package upcoming

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prayer-reminder/internal/models"
)

var beirut = time.FixedZone("EEST", 3*3600)

func record(times map[models.PrayerKey]string) models.DayRecord {
	rec := models.DayRecord{
		Date:  models.CalendarDate{Year: 2025, Month: time.June, Day: 1},
		Times: map[models.PrayerKey]models.ClockTime{},
	}
	for k, s := range times {
		c, err := models.ParseClockTime(s)
		if err != nil {
			panic(err)
		}
		rec.Times[k] = c
	}
	return rec
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, time.June, 1, hh, mm, ss, 0, beirut)
}

func TestComputeUpcoming(t *testing.T) {
	rec := record(map[models.PrayerKey]string{
		models.Fajr:    "04:30",
		models.Dhuhr:   "12:10",
		models.Maghrib: "19:50",
	})

	tests := []struct {
		name string
		now  time.Time
		want models.PrayerKey
		ok   bool
	}{
		{"before first", at(3, 0, 0), models.Fajr, true},
		{"exactly at fajr is not upcoming", at(4, 30, 0), models.Dhuhr, true},
		{"just before dhuhr", at(12, 9, 59), models.Dhuhr, true},
		{"after last", at(20, 0, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeUpcoming(rec, tt.now, beirut)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeUpcoming_UsesNowsDate(t *testing.T) {
	rec := record(map[models.PrayerKey]string{models.Fajr: "04:30"})
	// the record is dated 1 June, but a fallback day shown on 5 June still
	// counts against 5 June's clock
	now := time.Date(2025, time.June, 5, 4, 0, 0, 0, beirut)
	got, ok := ComputeUpcoming(rec, now, beirut)
	require.True(t, ok)
	assert.Equal(t, models.Fajr, got)
}

func newMachine(t *testing.T, start time.Time) (*Machine, *clockwork.FakeClock, *atomic.Int32) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(start)
	var calls atomic.Int32
	m := New(WithClock(fc), WithLocation(beirut), WithOnChange(func(models.UpcomingState, models.PrayerKey) {
		calls.Add(1)
	}))
	t.Cleanup(m.Stop)
	return m, fc, &calls
}

func waitFor(t *testing.T, m *Machine, state models.UpcomingState, next models.PrayerKey) {
	t.Helper()
	assert.Eventually(t, func() bool {
		s, n := m.Current()
		return s == state && n == next
	}, time.Second, 5*time.Millisecond)
}

func TestMachine_AdvancesThroughDay(t *testing.T) {
	m, fc, _ := newMachine(t, at(4, 0, 0))
	rec := record(map[models.PrayerKey]string{models.Fajr: "04:30", models.Dhuhr: "12:10"})

	s, _ := m.Current()
	assert.Equal(t, models.StateIdle, s)

	m.Set(rec)
	waitFor(t, m, models.StateScanning, models.Fajr)
	assert.True(t, m.Armed())

	// the wake is slack after the prayer, not at it
	fc.Advance(30 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	_, next := m.Current()
	assert.Equal(t, models.Fajr, next)

	fc.Advance(DefaultSlack)
	waitFor(t, m, models.StateScanning, models.Dhuhr)

	fc.Advance(7*time.Hour + 40*time.Minute)
	waitFor(t, m, models.StateAllEnded, 0)
	assert.False(t, m.Armed())
}

func TestMachine_AllEndedStaysQuiet(t *testing.T) {
	m, fc, calls := newMachine(t, at(23, 0, 0))
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:30", models.Isha: "20:49"}))

	s, _ := m.Current()
	require.Equal(t, models.StateAllEnded, s)
	assert.False(t, m.Armed())
	before := calls.Load()

	fc.Advance(30 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())

	// a new day record (midnight rollover) wakes the machine again
	fc.Advance(6 * time.Hour)
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:31"}))
	waitFor(t, m, models.StateScanning, models.Fajr)
}

func TestMachine_SetReplacesTimer(t *testing.T) {
	m, fc, _ := newMachine(t, at(4, 0, 0))
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:30", models.Dhuhr: "12:10"}))
	waitFor(t, m, models.StateScanning, models.Fajr)

	// table refreshed with a later fajr: the 04:30 wake must not advance us
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:45", models.Dhuhr: "12:10"}))
	fc.Advance(31 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	_, next := m.Current()
	assert.Equal(t, models.Fajr, next)

	fc.Advance(15 * time.Minute)
	waitFor(t, m, models.StateScanning, models.Dhuhr)
}

func TestMachine_StaleWakeIsNoop(t *testing.T) {
	m, _, calls := newMachine(t, at(4, 0, 0))
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:30"}))

	m.mu.Lock()
	stale := m.gen - 1
	gen := m.gen
	m.mu.Unlock()
	before := calls.Load()

	m.wake(stale)

	m.mu.Lock()
	assert.Equal(t, gen, m.gen)
	m.mu.Unlock()
	assert.Equal(t, before, calls.Load())
	assert.True(t, m.Armed())
}

func TestMachine_StopClearsTimer(t *testing.T) {
	m, fc, calls := newMachine(t, at(4, 0, 0))
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:30"}))
	require.True(t, m.Armed())

	m.Stop()
	assert.False(t, m.Armed())
	before := calls.Load()

	fc.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())

	m.Set(record(map[models.PrayerKey]string{models.Fajr: "06:00"}))
	s, _ := m.Current()
	assert.Equal(t, models.StateIdle, s)
}

func TestMachine_Clear(t *testing.T) {
	m, _, _ := newMachine(t, at(4, 0, 0))
	m.Set(record(map[models.PrayerKey]string{models.Fajr: "04:30"}))
	m.Clear()

	s, _ := m.Current()
	assert.Equal(t, models.StateIdle, s)
	assert.False(t, m.Armed())

	m.Refresh()
	s, _ = m.Current()
	assert.Equal(t, models.StateIdle, s)
}
