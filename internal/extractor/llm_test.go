package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseResponseSuccess(t *testing.T) {
	raw := `{
		"result": true,
		"title": "Meeting with Sergey",
		"start_time": "2024-03-15T15:00:00",
		"end_time": "2024-03-15T16:00:00",
		"location": "Office",
		"description": "",
		"comment": ""
	}`

	result, err := parseResponse(raw, 120)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "Meeting with Sergey", result.Title)
	assert.Equal(t, "2024-03-15T15:00:00", result.StartTime)
	assert.Equal(t, "2024-03-15T16:00:00", result.EndTime)
	assert.Equal(t, "Office", result.Location)
	assert.Equal(t, 120, result.TokensUsed)
}

func TestParseResponseSemanticFailure(t *testing.T) {
	raw := `{"result": false, "comment": "insufficient date information"}`

	result, err := parseResponse(raw, 30)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "insufficient date information", result.FailureReason)
	assert.Equal(t, 30, result.TokensUsed)
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"result\": true, \"title\": \"Dinner\"}\n```"

	result, err := parseResponse(raw, 10)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "Dinner", result.Title)
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := parseResponse("not json at all", 10)
	assert.Error(t, err)
}

func TestUpcomingCalendar(t *testing.T) {
	e := NewLLMExtractor("key", "", "model", 100, 0, zap.NewNop())
	// Wednesday 2024-03-20.
	e.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.Local) }

	lines := strings.Split(e.upcomingCalendar(), "\n")
	require.Len(t, lines, 14)
	assert.Equal(t, "20 March — Wednesday (today)", lines[0])
	assert.Equal(t, "21 March — this Thursday", lines[1])
	// Sunday closes the current week.
	assert.Equal(t, "24 March — this Sunday", lines[4])
	assert.Equal(t, "25 March — next Monday", lines[5])
	assert.Equal(t, "02 April — next Tuesday", lines[13])
}

func TestPromptCarriesDateAndMessage(t *testing.T) {
	e := NewLLMExtractor("key", "", "model", 100, 0, zap.NewNop())
	e.now = func() time.Time { return time.Date(2024, 3, 20, 12, 30, 0, 0, time.Local) }

	prompt := e.prompt("Alice (calendar owner): lunch tomorrow at noon")
	assert.Contains(t, prompt, "2024-03-20T12:30:00")
	assert.Contains(t, prompt, "Alice (calendar owner): lunch tomorrow at noon")
	assert.Contains(t, prompt, "20 March — Wednesday (today)")
}
