package timetable

import "prayer-reminder/internal/models"

// ResolveDayIndex chooses the row to show for now:
//
//  1. the row dated now;
//  2. the first row when now precedes the whole table;
//  3. the last row, flagged IsFallbackLast, when now is past the table;
//  4. otherwise the row nearest to now, earliest row on ties.
func ResolveDayIndex(records []models.DayRecord, now models.CalendarDate) (models.ResolvedDayIndex, error) {
	if len(records) == 0 {
		return models.ResolvedDayIndex{}, &NoScheduleDataError{}
	}

	minDate, maxDate := records[0].Date, records[0].Date
	for i, rec := range records {
		if rec.Date == now {
			return models.ResolvedDayIndex{Index: i}, nil
		}
		if rec.Date.Before(minDate) {
			minDate = rec.Date
		}
		if rec.Date.After(maxDate) {
			maxDate = rec.Date
		}
	}

	switch {
	case now.Before(minDate):
		return models.ResolvedDayIndex{Index: 0}, nil
	case now.After(maxDate):
		return models.ResolvedDayIndex{Index: len(records) - 1, IsFallbackLast: true}, nil
	}

	best, bestDist := 0, -1
	for i, rec := range records {
		d := abs(rec.Date.DaysBetween(now))
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return models.ResolvedDayIndex{Index: best}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
