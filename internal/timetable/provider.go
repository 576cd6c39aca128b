package timetable

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Provider hands out the current table. A refresh replaces the table as a
// whole; anything resolved from the previous table is stale afterwards and
// subscribers are told so.
type Provider struct {
	path    string
	current atomic.Pointer[Table]
	version atomic.Uint64

	mu   sync.Mutex
	subs []chan uint64
}

// NewProvider returns a provider reading from path. Call Reload before use.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// NewStaticProvider wraps an in-memory table.
func NewStaticProvider(t *Table) *Provider {
	p := &Provider{}
	p.Replace(t)
	return p
}

// Table returns the current table, or nil before the first load.
func (p *Provider) Table() *Table { return p.current.Load() }

// Version increases with every Replace.
func (p *Provider) Version() uint64 { return p.version.Load() }

// Replace swaps in t and notifies subscribers.
func (p *Provider) Replace(t *Table) {
	p.current.Store(t)
	v := p.version.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		// coalesce: a pending notification already tells the reader to reload
		select {
		case ch <- v:
		default:
		}
	}
}

// Reload decodes the file again and replaces the table. On error the
// previous table stays in place.
func (p *Provider) Reload() error {
	t, err := LoadFile(p.path)
	if err != nil {
		log.Error().Err(err).Str("path", p.path).Msg("timetable reload failed")
		return err
	}
	p.Replace(t)
	log.Info().Str("path", p.path).Uint64("version", p.Version()).Int("locations", len(t.days)).Msg("timetable loaded")
	return nil
}

// Subscribe returns a channel receiving the new version after each refresh.
func (p *Provider) Subscribe() <-chan uint64 {
	ch := make(chan uint64, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}
