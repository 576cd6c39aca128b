// Package timetable holds the location indexed prayer-time table and the
// rules for picking which of its days counts as "today".
package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"prayer-reminder/internal/models"
)

// LocationID names a location in the table, e.g. "beirut".
type LocationID = string

// ErrNoScheduleData matches every NoScheduleDataError via errors.Is.
var ErrNoScheduleData = errors.New("no schedule data")

// NoScheduleDataError is returned when a location has no rows to resolve.
type NoScheduleDataError struct {
	Location LocationID
}

func (e *NoScheduleDataError) Error() string {
	if e.Location == "" {
		return ErrNoScheduleData.Error()
	}
	return fmt.Sprintf("no schedule data for location %q", e.Location)
}

func (e *NoScheduleDataError) Is(target error) bool { return target == ErrNoScheduleData }

// Table is an immutable snapshot of the schedule. Row order within a location
// is chronological and may contain gaps.
type Table struct {
	days map[LocationID][]models.DayRecord
}

// New builds a table from already parsed records. The slices are copied.
func New(days map[LocationID][]models.DayRecord) *Table {
	t := &Table{days: make(map[LocationID][]models.DayRecord, len(days))}
	for loc, recs := range days {
		t.days[loc] = append([]models.DayRecord(nil), recs...)
	}
	return t
}

// Decode reads the JSON table format: location -> list of rows with a
// "D/M/YYYY" date and one "HH:MM" string per prayer. Other fields are ignored.
func Decode(r io.Reader) (*Table, error) {
	var raw map[LocationID][]map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}

	days := make(map[LocationID][]models.DayRecord, len(raw))
	for loc, rows := range raw {
		recs := make([]models.DayRecord, 0, len(rows))
		for i, row := range rows {
			rec, err := decodeRow(row)
			if err != nil {
				return nil, fmt.Errorf("decode table: %s row %d: %w", loc, i, err)
			}
			recs = append(recs, rec)
		}
		days[loc] = recs
	}
	return &Table{days: days}, nil
}

func decodeRow(row map[string]any) (models.DayRecord, error) {
	ds, _ := row["date"].(string)
	date, err := models.ParseCalendarDate(ds)
	if err != nil {
		return models.DayRecord{}, err
	}
	rec := models.DayRecord{Date: date, Times: make(map[models.PrayerKey]models.ClockTime, len(models.AllPrayers))}
	for _, k := range models.AllPrayers {
		v, ok := row[k.String()].(string)
		if !ok || v == "" {
			continue
		}
		c, err := models.ParseClockTime(v)
		if err != nil {
			return models.DayRecord{}, fmt.Errorf("%s: %w", k, err)
		}
		rec.Times[k] = c
	}
	return rec, nil
}

// LoadFile decodes the table stored at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Locations returns the known location ids, sorted.
func (t *Table) Locations() []LocationID {
	out := make([]LocationID, 0, len(t.days))
	for loc := range t.days {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Records returns the rows of loc. The slice must not be modified.
func (t *Table) Records(loc LocationID) ([]models.DayRecord, error) {
	recs := t.days[loc]
	if len(recs) == 0 {
		return nil, &NoScheduleDataError{Location: loc}
	}
	return recs, nil
}

// Find returns the row for exactly date, with no fallback.
func (t *Table) Find(loc LocationID, date models.CalendarDate) (models.DayRecord, bool) {
	for _, rec := range t.days[loc] {
		if rec.Date == date {
			return rec, true
		}
	}
	return models.DayRecord{}, false
}

// Resolve picks the row to display for now at loc.
func (t *Table) Resolve(loc LocationID, now models.CalendarDate) (models.DayRecord, models.ResolvedDayIndex, error) {
	recs, err := t.Records(loc)
	if err != nil {
		return models.DayRecord{}, models.ResolvedDayIndex{}, err
	}
	idx, err := ResolveDayIndex(recs, now)
	if err != nil {
		return models.DayRecord{}, models.ResolvedDayIndex{}, err
	}
	return recs[idx.Index], idx, nil
}

// Page is one row of a location's table seen while browsing, with the
// dates of its neighbours.
type Page struct {
	Record  models.DayRecord
	Index   int
	Count   int
	Prev    models.CalendarDate
	Next    models.CalendarDate
	HasPrev bool
	HasNext bool
}

// Step resolves from like Resolve and then moves step rows, stopping at the
// first or last row.
func (t *Table) Step(loc LocationID, from models.CalendarDate, step int) (Page, error) {
	recs, err := t.Records(loc)
	if err != nil {
		return Page{}, err
	}
	idx, err := ResolveDayIndex(recs, from)
	if err != nil {
		return Page{}, err
	}
	i := min(max(idx.Index+step, 0), len(recs)-1)

	p := Page{Record: recs[i], Index: i, Count: len(recs)}
	if i > 0 {
		p.Prev, p.HasPrev = recs[i-1].Date, true
	}
	if i < len(recs)-1 {
		p.Next, p.HasNext = recs[i+1].Date, true
	}
	return p, nil
}
