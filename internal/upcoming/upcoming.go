// Package upcoming tracks which prayer of the displayed day comes next and
// re-arms itself at each prayer time instead of polling.
package upcoming

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/models"
)

// DefaultSlack is added to the prayer instant before waking, so a timer that
// fires a little early still sees the prayer as passed.
const DefaultSlack = 500 * time.Millisecond

// ComputeUpcoming returns the first prayer in order whose time on now's
// calendar date is strictly after now.
func ComputeUpcoming(rec models.DayRecord, now time.Time, loc *time.Location) (models.PrayerKey, bool) {
	now = now.In(loc)
	today := models.DateOf(now)
	for _, k := range models.AllPrayers {
		c, ok := rec.Times[k]
		if !ok {
			continue
		}
		if today.On(c, loc).After(now) {
			return k, true
		}
	}
	return 0, false
}

// ChangeFunc observes state changes. It is called without the machine's lock
// held.
type ChangeFunc func(state models.UpcomingState, next models.PrayerKey)

// Machine owns a single wake timer. Every recomputation stops the previous
// timer first, and a timer that still fires after being replaced is ignored.
type Machine struct {
	clock    clockwork.Clock
	loc      *time.Location
	slack    time.Duration
	onChange ChangeFunc

	mu      sync.Mutex
	rec     *models.DayRecord
	state   models.UpcomingState
	next    models.PrayerKey
	timer   clockwork.Timer
	gen     uint64
	stopped bool
}

type Option func(*Machine)

func WithClock(c clockwork.Clock) Option     { return func(m *Machine) { m.clock = c } }
func WithSlack(d time.Duration) Option       { return func(m *Machine) { m.slack = d } }
func WithOnChange(fn ChangeFunc) Option      { return func(m *Machine) { m.onChange = fn } }
func WithLocation(loc *time.Location) Option { return func(m *Machine) { m.loc = loc } }

func New(opts ...Option) *Machine {
	m := &Machine{clock: clockwork.NewRealClock(), loc: time.Local, slack: DefaultSlack}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Set shows rec as today's record and recomputes immediately. Call it when
// the resolved day changes or the table is refreshed.
func (m *Machine) Set(rec models.DayRecord) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.rec = &rec
	m.recomputeLocked()
	m.notifyUnlock()
}

// Refresh recomputes for the current record, e.g. when the app comes back to
// the foreground.
func (m *Machine) Refresh() {
	m.mu.Lock()
	if m.stopped || m.rec == nil {
		m.mu.Unlock()
		return
	}
	m.recomputeLocked()
	m.notifyUnlock()
}

// Clear drops the record and goes back to Idle.
func (m *Machine) Clear() {
	m.mu.Lock()
	m.cancelLocked()
	m.rec = nil
	m.state, m.next = models.StateIdle, 0
	m.notifyUnlock()
}

// Stop cancels the pending wake for teardown. The machine stays idle
// afterwards.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.stopped = true
	m.rec = nil
	m.state, m.next = models.StateIdle, 0
}

// Current returns the state and, when scanning, the upcoming prayer.
func (m *Machine) Current() (models.UpcomingState, models.PrayerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.next
}

// Armed reports whether a wake timer is pending.
func (m *Machine) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *Machine) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Machine) recomputeLocked() {
	m.cancelLocked()

	now := m.clock.Now()
	key, ok := ComputeUpcoming(*m.rec, now, m.loc)
	if !ok {
		m.state, m.next = models.StateAllEnded, 0
		log.Debug().Str("date", m.rec.Date.String()).Msg("all prayers ended for today")
		return
	}
	m.state, m.next = models.StateScanning, key

	at := models.DateOf(now.In(m.loc)).On(m.rec.Times[key], m.loc).Add(m.slack)
	gen := m.gen
	m.timer = m.clock.AfterFunc(at.Sub(now), func() { m.wake(gen) })
	log.Debug().Str("next", key.String()).Time("wake_at", at).Msg("upcoming prayer armed")
}

func (m *Machine) wake(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.stopped || m.rec == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.recomputeLocked()
	m.notifyUnlock()
}

// notifyUnlock releases the lock and then reports the current state.
func (m *Machine) notifyUnlock() {
	state, next, fn := m.state, m.next, m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(state, next)
	}
}
