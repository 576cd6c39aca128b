package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prayer-reminder/internal/models"
)

func day(d, m, y int) models.CalendarDate {
	return models.CalendarDate{Year: y, Month: time.Month(m), Day: d}
}

func recs(dates ...models.CalendarDate) []models.DayRecord {
	out := make([]models.DayRecord, len(dates))
	for i, d := range dates {
		out[i] = models.DayRecord{Date: d}
	}
	return out
}

func TestResolveDayIndex(t *testing.T) {
	june := recs(day(1, 6, 2025), day(3, 6, 2025), day(4, 6, 2025), day(10, 6, 2025))

	tests := []struct {
		name    string
		records []models.DayRecord
		now     models.CalendarDate
		want    models.ResolvedDayIndex
	}{
		{"exact match", june, day(4, 6, 2025), models.ResolvedDayIndex{Index: 2}},
		{"before range", june, day(20, 5, 2025), models.ResolvedDayIndex{Index: 0}},
		{"after range", june, day(1, 7, 2025), models.ResolvedDayIndex{Index: 3, IsFallbackLast: true}},
		{"gap tie goes to earliest", june, day(2, 6, 2025), models.ResolvedDayIndex{Index: 0}},
		{"gap nearest later", june, day(8, 6, 2025), models.ResolvedDayIndex{Index: 3}},
		{"gap nearest earlier", june, day(6, 6, 2025), models.ResolvedDayIndex{Index: 2}},
		{"single record after", recs(day(1, 6, 2025)), day(2, 6, 2025), models.ResolvedDayIndex{Index: 0, IsFallbackLast: true}},
		{"across year end", recs(day(30, 12, 2024), day(2, 1, 2025)), day(1, 1, 2025), models.ResolvedDayIndex{Index: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDayIndex(tt.records, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDayIndex_Empty(t *testing.T) {
	_, err := ResolveDayIndex(nil, day(1, 1, 2025))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoScheduleData)

	var nsd *NoScheduleDataError
	assert.ErrorAs(t, err, &nsd)
}

func TestResolveDayIndex_AlwaysInRange(t *testing.T) {
	records := recs(day(5, 3, 2025), day(9, 3, 2025), day(11, 3, 2025), day(30, 3, 2025))
	start := day(1, 1, 2025)
	for i := 0; i < 200; i++ {
		now := start.AddDays(i)
		got, err := ResolveDayIndex(records, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Index, 0, now.String())
		assert.Less(t, got.Index, len(records), now.String())
		if got.IsFallbackLast {
			assert.True(t, now.After(day(30, 3, 2025)), now.String())
		}
	}
}

func TestTable_Resolve(t *testing.T) {
	tbl := New(map[LocationID][]models.DayRecord{
		"beirut": recs(day(1, 6, 2025), day(3, 6, 2025)),
	})

	rec, idx, err := tbl.Resolve("beirut", day(3, 6, 2025))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Index)
	assert.Equal(t, day(3, 6, 2025), rec.Date)

	_, _, err = tbl.Resolve("tyre", day(3, 6, 2025))
	var nsd *NoScheduleDataError
	require.ErrorAs(t, err, &nsd)
	assert.Equal(t, "tyre", nsd.Location)
}
