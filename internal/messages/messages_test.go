package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"prayer-reminder/internal/models"
)

func TestContent(t *testing.T) {
	title, body := Content("en", models.Fajr)
	assert.Equal(t, "Prayer Reminder", title)
	assert.Equal(t, "It's time for Fajr prayer.", body)

	title, body = Content("ar", models.Maghrib)
	assert.Equal(t, "تذكير الصلاة", title)
	assert.Equal(t, "حان موعد صلاة المغرب", body)
}

func TestPrayerName_EveryKey(t *testing.T) {
	for _, k := range models.AllPrayers {
		assert.NotEqual(t, k.String(), PrayerName("ar", k), k.String())
		assert.NotEmpty(t, PrayerName("en", k))
	}
}
