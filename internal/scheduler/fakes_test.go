package scheduler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"prayer-reminder/internal/models"
	"prayer-reminder/internal/settings"
	"prayer-reminder/internal/timetable"
)

var tz = time.FixedZone("EEST", 3*3600)

type fakeTriggers struct {
	mu         sync.Mutex
	live       map[string]models.Trigger
	creates    []string
	cancels    []string
	cancelAlls int
	failCreate map[string]error
	failCancel map[string]error
	failList   error
	onList     func()
}

func newFakeTriggers() *fakeTriggers {
	return &fakeTriggers{live: map[string]models.Trigger{}}
}

func (f *fakeTriggers) CreateTrigger(_ context.Context, t models.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[t.ID]; err != nil {
		return err
	}
	f.live[t.ID] = t
	f.creates = append(f.creates, t.ID)
	return nil
}

func (f *fakeTriggers) CancelTrigger(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCancel[id]; err != nil {
		return err
	}
	delete(f.live, id)
	f.cancels = append(f.cancels, id)
	return nil
}

func (f *fakeTriggers) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = map[string]models.Trigger{}
	f.cancelAlls++
	return nil
}

func (f *fakeTriggers) ListTriggers(context.Context) ([]models.TriggerInfo, error) {
	if f.onList != nil {
		f.onList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]models.TriggerInfo, 0, len(f.live))
	for _, t := range f.live {
		out = append(out, models.TriggerInfo{ID: t.ID, ChannelID: t.ChannelID, FireAt: t.FireAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTriggers) add(id, channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[id] = models.Trigger{ID: id, ChannelID: channel}
}

func (f *fakeTriggers) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.live))
	for id := range f.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *fakeTriggers) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	return nil
}

func date(d, m, y int) models.CalendarDate {
	return models.CalendarDate{Year: y, Month: time.Month(m), Day: d}
}

func rec(d models.CalendarDate, times map[models.PrayerKey]string) models.DayRecord {
	r := models.DayRecord{Date: d, Times: map[models.PrayerKey]models.ClockTime{}}
	for k, s := range times {
		c, err := models.ParseClockTime(s)
		if err != nil {
			panic(err)
		}
		r.Times[k] = c
	}
	return r
}

// june builds a beirut table for 1..n June 2025 with fajr 05:00 and dhuhr 12:00.
func june(days ...int) *timetable.Table {
	var recs []models.DayRecord
	for _, d := range days {
		recs = append(recs, rec(date(d, 6, 2025), map[models.PrayerKey]string{
			models.Fajr:  "05:00",
			models.Dhuhr: "12:00",
		}))
	}
	return timetable.New(map[timetable.LocationID][]models.DayRecord{"beirut": recs, "tyre": recs})
}

func snapshot(enabled ...models.PrayerKey) settings.Snapshot {
	s := settings.Defaults()
	for _, k := range enabled {
		s = s.WithPrayer(k, true)
	}
	return s
}

type harness struct {
	s     *Scheduler
	trig  *fakeTriggers
	kv    *memKV
	clock *clockwork.FakeClock
}

func newHarness(t *testing.T, tbl *timetable.Table, now time.Time) *harness {
	t.Helper()
	h := &harness{
		trig:  newFakeTriggers(),
		kv:    &memKV{},
		clock: clockwork.NewFakeClockAt(now),
	}
	h.s = New(h.trig, h.kv, timetable.NewStaticProvider(tbl), WithClock(h.clock), WithLocation(tz))
	return h
}
