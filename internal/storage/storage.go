package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"prayer-reminder/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// DB is the local durable store: settings and flags in kv, and the trigger
// list that stands in for the device's notification service.
type DB struct {
	*sql.DB
	clock clockwork.Clock
}

type Option func(*DB)

// WithClock sets the clock used for row bookkeeping.
func WithClock(c clockwork.Clock) Option { return func(d *DB) { d.clock = c } }

func New(path string, opts ...Option) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under the bot's goroutines
	db.SetMaxOpenConns(1)
	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	d := &DB{DB: db, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- key / value -----------------------------------------------------

func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO kv(key, value) VALUES (?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// ---------- triggers --------------------------------------------------------

// CreateTrigger registers t. An existing trigger with the same id is
// overwritten.
func (d *DB) CreateTrigger(ctx context.Context, t models.Trigger) error {
	if t.ID == "" {
		return errors.New("trigger id is empty")
	}
	_, err := d.ExecContext(ctx, `
        INSERT INTO triggers (id, channel_id, fire_at, title, body, silent, created_at)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET channel_id=excluded.channel_id,
            fire_at=excluded.fire_at,
            title=excluded.title,
            body=excluded.body,
            silent=excluded.silent
    `, t.ID, t.ChannelID, t.FireAt.Unix(), t.Title, t.Body, t.Silent, d.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("create trigger %s: %w", t.ID, err)
	}
	return nil
}

// CancelTrigger removes id. Unknown ids are not an error.
func (d *DB) CancelTrigger(ctx context.Context, id string) error {
	_, err := d.ExecContext(ctx, `DELETE FROM triggers WHERE id=?`, id)
	return err
}

func (d *DB) CancelAll(ctx context.Context) error {
	_, err := d.ExecContext(ctx, `DELETE FROM triggers`)
	return err
}

func (d *DB) ListTriggers(ctx context.Context) ([]models.TriggerInfo, error) {
	rows, err := d.QueryContext(ctx, `SELECT id, channel_id, fire_at FROM triggers ORDER BY fire_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.TriggerInfo
	for rows.Next() {
		var (
			ti     models.TriggerInfo
			fireAt int64
		)
		if err := rows.Scan(&ti.ID, &ti.ChannelID, &fireAt); err != nil {
			return nil, err
		}
		ti.FireAt = time.Unix(fireAt, 0)
		res = append(res, ti)
	}
	return res, rows.Err()
}

// PendingTriggers returns every trigger with its content, earliest first.
func (d *DB) PendingTriggers(ctx context.Context) ([]models.Trigger, error) {
	return d.queryTriggers(ctx, `
        SELECT id, channel_id, fire_at, title, body, silent
        FROM triggers ORDER BY fire_at, id`)
}

// DueTriggers returns the triggers whose time is at or before now.
func (d *DB) DueTriggers(ctx context.Context, now time.Time) ([]models.Trigger, error) {
	return d.queryTriggers(ctx, `
        SELECT id, channel_id, fire_at, title, body, silent
        FROM triggers WHERE fire_at <= ? ORDER BY fire_at, id`, now.Unix())
}

// MarkFired drops a delivered trigger, as the device would after showing it.
func (d *DB) MarkFired(ctx context.Context, id string) error {
	return d.CancelTrigger(ctx, id)
}

func (d *DB) queryTriggers(ctx context.Context, q string, args ...any) ([]models.Trigger, error) {
	rows, err := d.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.Trigger
	for rows.Next() {
		var (
			t      models.Trigger
			fireAt int64
		)
		if err := rows.Scan(&t.ID, &t.ChannelID, &fireAt, &t.Title, &t.Body, &t.Silent); err != nil {
			return nil, err
		}
		t.FireAt = time.Unix(fireAt, 0)
		res = append(res, t)
	}
	return res, rows.Err()
}
