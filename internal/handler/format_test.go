package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"calbot/internal/models"
)

func TestFormatEventAllFields(t *testing.T) {
	text := FormatEvent(&models.Event{
		Title:       "Team offsite",
		StartTime:   "2024-03-25T09:00:00",
		EndTime:     "2024-03-25T18:00:00",
		Location:    "Mountain lodge",
		Description: "Bring warm clothes",
	})

	assert.Equal(t,
		"📌 Team offsite\n"+
			"🕒 Start: 25.03.2024 09:00\n"+
			"🕒 End: 25.03.2024 18:00\n"+
			"📍 Mountain lodge\n"+
			"📝 Bring warm clothes",
		text)
}

func TestFormatEventOmitsEmptyFields(t *testing.T) {
	text := FormatEvent(&models.Event{
		Title:     "Dentist",
		StartTime: "2024-03-25T09:00:00",
	})

	assert.Equal(t, "📌 Dentist\n🕒 Start: 25.03.2024 09:00", text)
}

func TestFormatDateTimePassesThroughUnparseable(t *testing.T) {
	assert.Equal(t, "soonish", formatDateTime("soonish"))
}
