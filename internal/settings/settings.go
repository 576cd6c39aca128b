// Package settings owns the user's reminder preferences. Readers get
// immutable snapshots; every change goes through Store.Update and is
// published to subscribers.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"prayer-reminder/internal/models"
)

const storageKey = "settings"

var validate = validator.New()

const (
	LangArabic  = "ar"
	LangEnglish = "en"

	TimeFormat24h = "24h"
	TimeFormat12h = "12h"
)

// Snapshot is a copy of the settings at one moment. Treat it as a value:
// use the With helpers instead of writing to Enabled.
type Snapshot struct {
	Location string                  `json:"selectedLocation" validate:"required"`
	Language string                  `json:"language"         validate:"oneof=ar en"`
	Enabled  models.EnabledPrayerSet `json:"enabledPrayers"`
	Sound    bool                    `json:"sound"`
	// TimeFormat only changes how times are shown.
	TimeFormat string `json:"timeFormat" validate:"oneof=24h 12h"`
}

// Defaults mirrors a fresh install: Arabic, Beirut, nothing enabled, sound
// on, 24-hour times.
func Defaults() Snapshot {
	enabled := make(models.EnabledPrayerSet, len(models.AllPrayers))
	for _, k := range models.AllPrayers {
		enabled[k] = false
	}
	return Snapshot{Location: "beirut", Language: LangArabic, Enabled: enabled, Sound: true, TimeFormat: TimeFormat24h}
}

func (s Snapshot) Clone() Snapshot {
	s.Enabled = s.Enabled.Clone()
	return s
}

func (s Snapshot) WithLocation(loc string) Snapshot {
	s = s.Clone()
	s.Location = loc
	return s
}

func (s Snapshot) WithLanguage(lang string) Snapshot {
	s = s.Clone()
	s.Language = lang
	return s
}

func (s Snapshot) WithSound(on bool) Snapshot {
	s = s.Clone()
	s.Sound = on
	return s
}

func (s Snapshot) WithTimeFormat(f string) Snapshot {
	s = s.Clone()
	s.TimeFormat = f
	return s
}

func (s Snapshot) WithPrayer(k models.PrayerKey, on bool) Snapshot {
	s = s.Clone()
	if s.Enabled == nil {
		s.Enabled = models.EnabledPrayerSet{}
	}
	s.Enabled[k] = on
	return s
}

// Change is published after a successful update.
type Change struct {
	Old Snapshot
	New Snapshot
}

// LocationChanged reports whether a full reset of reminders is needed.
func (c Change) LocationChanged() bool { return c.Old.Location != c.New.Location }

// ToggledPrayers lists the keys whose enabled flag differs, in prayer order.
func (c Change) ToggledPrayers() []models.PrayerKey {
	var out []models.PrayerKey
	for _, k := range models.AllPrayers {
		if c.Old.Enabled[k] != c.New.Enabled[k] {
			out = append(out, k)
		}
	}
	return out
}

// KV is the durable key-value store the settings live in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Store struct {
	kv KV

	mu      sync.RWMutex
	current Snapshot

	pubMu sync.Mutex
	subs  []chan Change
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, current: Defaults()}
}

// Load reads the persisted settings, keeping defaults for absent fields.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}
	snap := Defaults()
	if ok {
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			log.Warn().Err(err).Msg("stored settings unreadable, using defaults")
			snap = Defaults()
		}
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap.Clone(), nil
}

// Current returns a snapshot the caller may keep.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update applies fn, persists the result and publishes the change. Nothing
// is published when fn leaves the settings equal.
func (s *Store) Update(ctx context.Context, fn func(Snapshot) Snapshot) (Change, error) {
	s.mu.Lock()
	old := s.current.Clone()
	next := fn(old.Clone())
	if err := validate.Struct(next); err != nil {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("invalid settings: %w", err)
	}
	b, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey, string(b)); err != nil {
		s.mu.Unlock()
		return Change{}, fmt.Errorf("save settings: %w", err)
	}
	s.current = next.Clone()
	// take the publish lock before releasing the state lock so subscribers
	// see changes in the order they were applied
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	ch := Change{Old: old, New: next}
	if !equal(old, next) {
		s.publish(ctx, ch)
	}
	return ch, nil
}

// Subscribe returns a stream of changes. The reader must keep draining it.
func (s *Store) Subscribe() <-chan Change {
	ch := make(chan Change, 16)
	s.pubMu.Lock()
	s.subs = append(s.subs, ch)
	s.pubMu.Unlock()
	return ch
}

// publish must be called with pubMu held.
func (s *Store) publish(ctx context.Context, c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c.clone():
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("settings change not delivered")
			return
		}
	}
}

func (c Change) clone() Change {
	return Change{Old: c.Old.Clone(), New: c.New.Clone()}
}

func equal(a, b Snapshot) bool {
	if a.Location != b.Location || a.Language != b.Language || a.Sound != b.Sound || a.TimeFormat != b.TimeFormat {
		return false
	}
	for _, k := range models.AllPrayers {
		if a.Enabled[k] != b.Enabled[k] {
			return false
		}
	}
	return true
}
